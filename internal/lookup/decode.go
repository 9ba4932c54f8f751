package lookup

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Metadata field names read from a lookup response.
const (
	fieldImage         = "image"
	fieldDescription   = "description"
	fieldReturnCode    = "return_code"
	fieldReturnMessage = "return_message"
)

// metadata is the subset of a lookup response the pipeline needs.
type metadata struct {
	image          string
	description    string
	hasImage       bool
	hasDescription bool

	// returnCode and returnMessage are set by the API on failed lookups
	// (e.g. unknown barcode or bad signature).
	returnCode    string
	returnMessage string
}

// errNotJSON marks a body that is not a JSON document at all.
var errNotJSON = errors.New("body is not valid json")

// decodeMetadata extracts the string fields of a top-level JSON object.
// Fields that are absent, null or not strings are reported as missing via
// hasImage/hasDescription. A valid JSON document that is not an object has no
// fields at all.
func decodeMetadata(body []byte) (metadata, error) {
	var m metadata
	if !jx.Valid(body) {
		return m, errNotJSON
	}

	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return m, nil
	}

	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case fieldImage:
			v, ok, err := optString(d)
			m.image, m.hasImage = v, ok
			return err
		case fieldDescription:
			v, ok, err := optString(d)
			m.description, m.hasDescription = v, ok
			return err
		case fieldReturnCode:
			v, _, err := optString(d)
			m.returnCode = v
			return err
		case fieldReturnMessage:
			v, _, err := optString(d)
			m.returnMessage = v
			return err
		default:
			return d.Skip()
		}
	}); err != nil {
		return m, errors.Wrap(err, "decode object")
	}
	return m, nil
}

// optString reads a string value, skipping any other type.
func optString(d *jx.Decoder) (string, bool, error) {
	if d.Next() != jx.String {
		return "", false, d.Skip()
	}
	v, err := d.Str()
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}
