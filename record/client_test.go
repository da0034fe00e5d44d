package record

import "testing"

func TestClientName(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"anchor", `<a href="http://twitter.com/download/android" rel="nofollow">Twitter for Android</a>`, "Twitter for Android"},
		{"single quoted anchor", `<a href='x'>Twitter for Android</a>`, "Twitter for Android"},
		{"plain", "web", "web"},
		{"whitespace collapsed", "<a href='x'>Tweetbot   for\n iOS</a>", "Tweetbot for iOS"},
		{"unterminated anchor", "<a href='x'>Instagram", "<a href='x'>Instagram"},
		{"trimmed", "  TweetDeck ", "TweetDeck"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientName(tt.source); got != tt.want {
				t.Errorf("ClientName(%q) = %q, want %q", tt.source, got, tt.want)
			}
		})
	}
}
