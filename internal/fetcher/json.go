package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray streams the elements of a top-level JSON array. An empty
// body yields no elements. fn is called for each element in order; a non-nil
// return stops decoding.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader, fn func(T) error) error {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return eris.Wrap(err, "fetcher: read json array start")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return eris.Errorf("fetcher: expected json array, got %v", tok)
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "fetcher: json stream cancelled")
		}
		var v T
		if err := dec.Decode(&v); err != nil {
			return eris.Wrap(err, "fetcher: decode json element")
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "fetcher: read json array end")
	}
	return nil
}
