package row

import (
	"bytes"
	"encoding/json"

	"github.com/tessera-db/tessera/internal/errs"
)

// DecodeAggregate converts one query result row whose sole column is a JSON
// aggregate (the output of ROW_TO_JSON) into a Document. The aggregate must
// be a JSON object; anything else is a row-parse failure carrying the
// offending value.
func DecodeAggregate(src []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errs.Wrap(errs.KindRowParse, "result row is not valid JSON", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, errs.Newf(errs.KindRowParse,
			"result row is not a JSON object: %s", compact(src))
	}

	doc := make(Document, len(obj))
	for k, v := range obj {
		doc[k] = FromAny(v)
	}
	return doc, nil
}

func compact(src []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, src); err != nil {
		return string(src)
	}
	return buf.String()
}
