package spec

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// preprocessV2ForCompatibility rewrites Swagger 2.0 operations that
// openapi2conv rejects:
//   - several "body" parameters are merged into one object-typed body;
//   - "body" mixed with "formData" becomes formData only, and the operation
//     consumes multipart/form-data.
//
// The original bytes are returned (changed=false) when nothing applies or
// the document cannot be re-encoded. Map re-encoding loses key order, so
// callers keep the original bytes for route ordering.
func preprocessV2ForCompatibility(data []byte) ([]byte, bool, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	paths, ok := doc["paths"].(map[string]any)
	if !ok || len(paths) == 0 {
		return data, false, nil
	}

	modified := false
	for _, rawItem := range paths {
		item, ok := rawItem.(map[string]any)
		if !ok {
			continue
		}
		for method, rawOp := range item {
			if !isHTTPMethod(method) {
				continue
			}
			op, ok := rawOp.(map[string]any)
			if !ok {
				continue
			}
			if fixV2Operation(op) {
				modified = true
			}
		}
	}

	if !modified {
		return data, false, nil
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func fixV2Operation(op map[string]any) bool {
	params, ok := op["parameters"].([]any)
	if !ok || len(params) == 0 {
		return false
	}

	bodies, hasFormData := 0, false
	for _, p := range params {
		switch strings.ToLower(paramIn(p)) {
		case "body":
			bodies++
		case "formdata":
			hasFormData = true
		}
	}

	switch {
	case bodies > 0 && hasFormData:
		op["parameters"] = bodiesToFormData(params)
		consumes, _ := op["consumes"].([]any)
		if !containsString(consumes, "multipart/form-data") {
			op["consumes"] = append(consumes, "multipart/form-data")
		}
		return true
	case bodies > 1:
		op["parameters"] = mergeBodies(params)
		return true
	}
	return false
}

func paramIn(p any) string {
	pm, _ := p.(map[string]any)
	return asString(pm["in"])
}

func bodiesToFormData(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		if strings.EqualFold(asString(pm["in"]), "body") {
			out = append(out, formDataFromBodyParam(pm))
			continue
		}
		out = append(out, pm)
	}
	return out
}

// mergeBodies replaces every body parameter with a single "body" parameter
// whose schema has one property per original parameter.
func mergeBodies(params []any) []any {
	props := map[string]any{}
	var required []any
	rest := make([]any, 0, len(params))
	for _, p := range params {
		pm, _ := p.(map[string]any)
		if pm == nil {
			continue
		}
		if !strings.EqualFold(asString(pm["in"]), "body") {
			rest = append(rest, p)
			continue
		}
		name := paramName(pm)
		schema := schemaFromParam(pm)
		if schema == nil {
			schema = map[string]any{"type": "string"}
		}
		props[name] = schema
		if req, _ := pm["required"].(bool); req {
			required = append(required, name)
		}
	}

	bodySchema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		bodySchema["required"] = required
	}
	merged := map[string]any{"in": "body", "name": "body", "schema": bodySchema}
	return append([]any{merged}, rest...)
}

func formDataFromBodyParam(pm map[string]any) map[string]any {
	out := map[string]any{"in": "formData", "name": paramName(pm)}
	if desc := asString(pm["description"]); desc != "" {
		out["description"] = desc
	}
	if req, ok := pm["required"].(bool); ok {
		out["required"] = req
	}

	// formData cannot carry a $ref'd object; such bodies degrade to string.
	src := pm
	if sch, ok := pm["schema"].(map[string]any); ok {
		src = sch
		if asString(sch["type"]) == "" && sch["$ref"] != nil {
			src = map[string]any{"type": "string"}
		}
	}
	typ := asString(src["type"])
	if typ == "" {
		typ = "string"
	}
	out["type"] = typ
	if items, ok := src["items"].(map[string]any); ok {
		out["items"] = items
	}
	if f := asString(src["format"]); f != "" {
		out["format"] = f
	}
	return out
}

func schemaFromParam(pm map[string]any) map[string]any {
	if sch, ok := pm["schema"].(map[string]any); ok {
		return sch
	}
	typ := asString(pm["type"])
	if typ == "" {
		return nil
	}
	m := map[string]any{"type": typ}
	if items, ok := pm["items"].(map[string]any); ok {
		m["items"] = items
	}
	if f := asString(pm["format"]); f != "" {
		m["format"] = f
	}
	return m
}

func paramName(pm map[string]any) string {
	if name := asString(pm["name"]); name != "" {
		return name
	}
	return "field"
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func containsString(list []any, want string) bool {
	for _, v := range list {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}
