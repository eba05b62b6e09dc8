package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Decodes a JSON request body into a new T. An empty body decodes to the zero
// value of T, as if the client had sent "{}". Anything other than whitespace
// after the first JSON value is an error.
func DecodeBody[T any](body io.Reader) (T, error) {
	var result T
	if body == nil {
		return result, nil
	}

	dec := json.NewDecoder(body)
	err := dec.Decode(&result)
	if errors.Is(err, io.EOF) {
		var empty T
		return empty, nil
	}
	if err != nil {
		var empty T
		return empty, fmt.Errorf("unable to decode request body: %w", err)
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		var empty T
		return empty, errors.New("unexpected data after JSON value in request body")
	}
	return result, nil
}

// Returns data as a JSON document. Data that is already valid JSON is
// returned unchanged; anything else is encoded as a JSON string.
func AsJSON(data []byte) []byte {
	if len(data) > 0 && json.Valid(data) {
		return data
	}

	// Marshalling a string cannot fail.
	encoded, _ := json.Marshal(string(data))
	return encoded
}
