package record

import (
	"fmt"
	"slices"

	"github.com/poiesic/postflow/core"
	"github.com/tidwall/gjson"
)

// Field paths read from a raw record.
const (
	fieldID            = "id_str"
	fieldUser          = "user"
	fieldSource        = "source"
	fieldReplyStatusID = "in_reply_to_status_id_str"
	fieldReplyUserID   = "in_reply_to_user_id_str"
	fieldReplyScreen   = "in_reply_to_screen_name"
	fieldRetweet       = "retweeted_status"
	fieldMentions      = "entities.user_mentions"
	fieldMedia         = "entities.media"
	mediaTypePhoto     = "photo"
	literalNull        = "null"
)

// Parse converts one raw JSON record into a Post. It fails with a
// *core.MalformedRecordError naming the offending field when a required
// field is missing or has the wrong shape. The returned Post keeps a copy
// of raw; it has no images and no provenance id yet.
func Parse(raw []byte) (*core.Post, error) {
	if !gjson.ValidBytes(raw) {
		return nil, core.Invalid("$", "is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, core.Invalid("$", "must be an object")
	}

	id, err := requiredString(doc, fieldID)
	if err != nil {
		return nil, err
	}

	author, err := parseUser(doc.Get(fieldUser), fieldUser)
	if err != nil {
		return nil, err
	}

	source, err := requiredString(doc, fieldSource)
	if err != nil {
		return nil, err
	}

	post := &core.Post{
		ID:     id,
		Author: author,
		Source: ClientName(source),
		Raw:    slices.Clone(raw),
	}

	if post.Mentions, err = parseMentions(doc); err != nil {
		return nil, err
	}

	post.RepliedTo = parseReply(doc)
	if post.RepliedTo == nil {
		if post.Retweeted, err = parseRetweet(doc); err != nil {
			return nil, err
		}
	}

	if post.Photos, err = parsePhotos(doc); err != nil {
		return nil, err
	}

	return post, nil
}

// requiredString reads a non-empty string at path relative to r.
func requiredString(r gjson.Result, path string) (string, error) {
	return requiredStringAt(r, path, path)
}

func requiredStringAt(r gjson.Result, path, field string) (string, error) {
	v := r.Get(path)
	if !v.Exists() || v.Type == gjson.Null {
		return "", core.Missing(field)
	}
	if v.Type != gjson.String {
		return "", core.Invalid(field, "must be a string")
	}
	if v.Str == "" {
		return "", core.Invalid(field, "is empty")
	}
	return v.Str, nil
}

func parseUser(r gjson.Result, field string) (core.User, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return core.User{}, core.Missing(field)
	}
	if !r.IsObject() {
		return core.User{}, core.Invalid(field, "must be an object")
	}

	id, err := requiredStringAt(r, "id_str", field+".id_str")
	if err != nil {
		return core.User{}, err
	}
	screenName, err := requiredStringAt(r, "screen_name", field+".screen_name")
	if err != nil {
		return core.User{}, err
	}

	return core.User{
		ID:         id,
		ScreenName: screenName,
		Name:       r.Get("name").String(),
	}, nil
}

func parseMentions(doc gjson.Result) ([]core.User, error) {
	list := doc.Get(fieldMentions)
	if !list.Exists() || list.Type == gjson.Null {
		return nil, nil
	}
	if !list.IsArray() {
		return nil, core.Invalid(fieldMentions, "must be an array")
	}

	var mentions []core.User
	for i, m := range list.Array() {
		u, err := parseUser(m, fmt.Sprintf("%s.%d", fieldMentions, i))
		if err != nil {
			return nil, err
		}
		mentions = append(mentions, u)
	}
	return mentions, nil
}

// parseReply returns the reply target, or nil unless all three reply fields
// carry a usable value.
func parseReply(doc gjson.Result) *core.Reference {
	statusID, ok1 := replyField(doc, fieldReplyStatusID)
	userID, ok2 := replyField(doc, fieldReplyUserID)
	screenName, ok3 := replyField(doc, fieldReplyScreen)
	if !ok1 || !ok2 || !ok3 {
		return nil
	}
	return &core.Reference{
		PostID: statusID,
		User:   core.User{ID: userID, ScreenName: screenName},
	}
}

func replyField(doc gjson.Result, path string) (string, bool) {
	v := doc.Get(path)
	if v.Type != gjson.String || v.Str == "" || v.Str == literalNull {
		return "", false
	}
	return v.Str, true
}

func parseRetweet(doc gjson.Result) (*core.Reference, error) {
	rt := doc.Get(fieldRetweet)
	if !rt.Exists() || rt.Type == gjson.Null {
		return nil, nil
	}
	if !rt.IsObject() {
		return nil, core.Invalid(fieldRetweet, "must be an object")
	}

	id, err := requiredStringAt(rt, "id_str", fieldRetweet+".id_str")
	if err != nil {
		return nil, err
	}
	user, err := parseUser(rt.Get("user"), fieldRetweet+".user")
	if err != nil {
		return nil, err
	}
	return &core.Reference{PostID: id, User: user}, nil
}

func parsePhotos(doc gjson.Result) ([]core.PhotoRef, error) {
	list := doc.Get(fieldMedia)
	if !list.Exists() || list.Type == gjson.Null {
		return nil, nil
	}
	if !list.IsArray() {
		return nil, core.Invalid(fieldMedia, "must be an array")
	}

	var photos []core.PhotoRef
	for i, m := range list.Array() {
		if m.Get("type").String() != mediaTypePhoto {
			continue
		}
		field := fmt.Sprintf("%s.%d", fieldMedia, i)
		id, err := requiredStringAt(m, "id_str", field+".id_str")
		if err != nil {
			return nil, err
		}
		url, err := requiredStringAt(m, "media_url", field+".media_url")
		if err != nil {
			return nil, err
		}
		photos = append(photos, core.PhotoRef{ID: id, MediaURL: url})
	}
	return photos, nil
}
