package httpapi

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// maxBodyBytes caps request bodies read by the API.
const maxBodyBytes = 64 << 10

const schemaBaseURL = "https://todolist.local/schemas/"

//go:embed schemas/*.json
var schemaFS embed.FS

var errInvalidBody = errors.New("invalid request body")

type requestSchemas struct {
	createTodo *jsonschema.Schema
	updateTodo *jsonschema.Schema
}

func compileSchemas() (requestSchemas, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compile := func(name string) (*jsonschema.Schema, error) {
		data, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		url := schemaBaseURL + name
		if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		return schema, nil
	}

	var schemas requestSchemas
	var err error
	if schemas.createTodo, err = compile("create_todo.json"); err != nil {
		return requestSchemas{}, err
	}
	if schemas.updateTodo, err = compile("update_todo.json"); err != nil {
		return requestSchemas{}, err
	}
	return schemas, nil
}

// decodeBody reads one JSON document, validates it against schema and decodes
// it into target.
func decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, target any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var document any
	if err := decoder.Decode(&document); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if decoder.More() {
		return fmt.Errorf("%w: trailing data", errInvalidBody)
	}
	if err := schema.Validate(document); err != nil {
		return fmt.Errorf("%w: %s", errInvalidBody, schemaMessages(err))
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func schemaMessages(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var messages []string
	collectSchemaMessages(ve, &messages)
	return strings.Join(messages, "; ")
}

func collectSchemaMessages(err *jsonschema.ValidationError, messages *[]string) {
	if len(err.Causes) == 0 {
		location := err.InstanceLocation
		if location == "" {
			location = "/"
		}
		*messages = append(*messages, location+": "+err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaMessages(cause, messages)
	}
}
