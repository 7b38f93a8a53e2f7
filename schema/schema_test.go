package schema

import (
	"encoding/json"
	"testing"
)

func TestEmbeddedSchemaIsValidJSON(t *testing.T) {
	t.Parallel()
	data, err := FS.ReadFile("gantry.schema.json")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("embedded schema is not valid JSON: %v", err)
	}

	if doc["type"] != "object" {
		t.Errorf("schema root type = %v, want object", doc["type"])
	}
	props, ok := doc["properties"].(map[string]interface{})
	if !ok {
		t.Fatal("schema has no properties object")
	}
	for _, key := range []string{"project", "matrix", "triggers", "publish"} {
		if _, ok := props[key]; !ok {
			t.Errorf("schema missing property %q", key)
		}
	}
}
