package postflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/postflow/config"
	"github.com/poiesic/postflow/graph"
	"github.com/poiesic/postflow/provenance"
	"github.com/poiesic/postflow/security"
	"github.com/poiesic/postflow/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var records = source.Slice{
	[]byte(`{
		"id_str": "1",
		"user": {"id_str": "u1", "screen_name": "alice"},
		"source": "<a href=\"http://twitter.com\">Twitter Web App</a>",
		"entities": {
			"user_mentions": [{"id_str": "u2", "screen_name": "bob"}],
			"media": [{"type": "photo", "id_str": "900", "media_url": "http://pbs.example/900.jpg"}]
		}
	}`),
	[]byte(`{
		"id_str": "2",
		"user": {"id_str": "u2", "screen_name": "bob"},
		"source": "TweetDeck",
		"in_reply_to_status_id_str": "1",
		"in_reply_to_user_id_str": "u1",
		"in_reply_to_screen_name": "alice"
	}`),
	[]byte(`{"id_str": "3"}`),
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	imageDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(imageDir, "900.jpg"), []byte("pixels"), 0o644))

	cfg := config.NewConfig(
		config.WithDataDir(filepath.Join(t.TempDir(), "data")),
		config.WithToken("secret"),
		config.WithPause(0),
		config.WithImageDir(imageDir),
	)
	cfg.AgeOffRules = []string{"30d"}
	return cfg
}

func TestInitialize_RunEndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	finished := 0
	p, err := Initialize(ctx, cfg, records, WithOnFinished(func() { finished++ }))
	require.NoError(t, err)
	defer p.Cleanup()

	require.NoError(t, p.Run(ctx))
	assert.Equal(t, 1, finished)
	assert.Equal(t, 3, p.Dispatcher().Index())

	cred := p.Credential()
	n, err := p.Documents().Count(ctx, cred, cfg.Collection)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "the malformed record is skipped")

	edges, err := p.Stores().Graph.Edges(ctx, cred, cfg.GraphName, "bob")
	require.NoError(t, err)
	var labels []graph.Label
	for _, e := range edges {
		labels = append(labels, e.Label)
	}
	assert.ElementsMatch(t, []graph.Label{graph.LabelMentionedBy, graph.LabelRepliedTo}, labels)

	image, err := p.Stores().Registry.Lookup(ctx, cred, provenance.ImageURI("900.jpg"))
	require.NoError(t, err)
	post, err := p.Stores().Registry.Lookup(ctx, cred, provenance.PostURI("1"))
	require.NoError(t, err)
	assert.Equal(t, post.ID, image.Parents[0])
	assert.Equal(t, []string{"30d"}, post.AgeOffRules)

	families, err := p.Metrics().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestInitialize_Generate(t *testing.T) {
	ctx := context.Background()
	p, err := Initialize(ctx, testConfig(t), records)
	require.NoError(t, err)
	defer p.Cleanup()

	require.NoError(t, p.Generate(ctx))
	assert.Equal(t, 1, p.Dispatcher().Index())
}

func TestInitialize_MissingCredential(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Token = ""

	_, err := Initialize(ctx, cfg, records)
	assert.ErrorIs(t, err, security.ErrCredentialUnavailable)

	// the failed attempt released the data directory
	cfg.Token = "secret"
	p, err := Initialize(ctx, cfg, records)
	require.NoError(t, err)
	assert.NoError(t, p.Cleanup())
	assert.NoError(t, p.Cleanup())
}

func TestInitialize_InvalidConfig(t *testing.T) {
	_, err := Initialize(context.Background(), config.NewConfig(), records)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestInitialize_CheckpointResume(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Checkpoint = true

	p, err := Initialize(ctx, cfg, records)
	require.NoError(t, err)
	require.NoError(t, p.Generate(ctx))
	require.NoError(t, p.Cleanup())

	p, err = Initialize(ctx, cfg, records)
	require.NoError(t, err)
	defer p.Cleanup()
	assert.Equal(t, 1, p.Dispatcher().Index())
}
