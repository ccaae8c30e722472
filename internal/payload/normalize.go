package payload

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
)

const (
	// AttributesKey holds an element's XML attributes.
	AttributesKey = "@attributes"

	// TextKey holds the text of an XML element that also carries attributes.
	TextKey = "#text"
)

// Normalize converts a provider response body into a Value.
//
// A body that is empty after trimming whitespace yields an empty map for any
// content type. A content type mentioning "xml" is decoded as XML. A
// form-urlencoded content type is decoded as a query string. Anything else is
// decoded as JSON; when that fails and the content type does not claim JSON,
// the raw body is returned as a scalar.
func Normalize(body []byte, contentType string) (Value, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Map(nil), nil
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "xml"):
		return DecodeXML(trimmed)
	case strings.Contains(ct, "urlencoded"):
		return DecodeForm(string(trimmed))
	}

	v, err := DecodeJSON(trimmed)
	if err != nil {
		if strings.Contains(ct, "json") {
			return Value{}, err
		}
		return Scalar(string(trimmed)), nil
	}
	return v, nil
}

// DecodeJSON decodes a JSON document. Numbers keep their literal text.
func DecodeJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Value{}, fmt.Errorf("failed to decode JSON: trailing data after document")
	}

	return FromInterface(raw), nil
}

// FromInterface converts decoded Go values (as produced by encoding/json)
// into a Value.
func FromInterface(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = FromInterface(item)
		}
		return Map(fields)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromInterface(item)
		}
		return List(items...)
	case string:
		return Scalar(t)
	case json.Number:
		return Scalar(t.String())
	case bool:
		if t {
			return Scalar("true")
		}
		return Scalar("false")
	default:
		return Scalar(fmt.Sprint(t))
	}
}

// DecodeForm decodes an application/x-www-form-urlencoded body. Repeated keys
// keep the last value.
func DecodeForm(body string) (Value, error) {
	values, err := url.ParseQuery(body)
	if err != nil {
		return Value{}, fmt.Errorf("failed to decode form body: %w", err)
	}

	fields := make(map[string]Value, len(values))
	for k, vs := range values {
		if len(vs) == 0 {
			continue
		}
		fields[k] = Scalar(vs[len(vs)-1])
	}
	return Map(fields), nil
}

// element is an XML node collected while decoding.
type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

// DecodeXML decodes an XML document into a map keyed by the root element
// name. Elements without children or attributes become scalars holding their
// trimmed text. Repeated sibling elements overwrite each other: the last one
// wins.
func DecodeXML(data []byte) (Value, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var (
		root  *element
		stack []*element
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Value{}, fmt.Errorf("failed to decode XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: t.Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root == nil {
				root = el
			} else {
				return Value{}, fmt.Errorf("failed to decode XML: multiple root elements")
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return Value{}, fmt.Errorf("failed to decode XML: no root element")
	}

	return Map(map[string]Value{root.name: convertElement(root)}), nil
}

func convertElement(el *element) Value {
	attrs := significantAttrs(el.attrs)
	text := strings.TrimSpace(el.text.String())

	if len(el.children) == 0 && len(attrs) == 0 {
		return Scalar(text)
	}

	fields := make(map[string]Value, len(el.children)+1)
	if len(attrs) > 0 {
		attrFields := make(map[string]Value, len(attrs))
		for _, a := range attrs {
			attrFields[a.Name.Local] = Scalar(a.Value)
		}
		fields[AttributesKey] = Map(attrFields)
		if len(el.children) == 0 && text != "" {
			fields[TextKey] = Scalar(text)
		}
	}

	for _, child := range el.children {
		fields[child.name] = convertElement(child)
	}

	return Map(fields)
}

// significantAttrs drops namespace declarations.
func significantAttrs(attrs []xml.Attr) []xml.Attr {
	var out []xml.Attr
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		out = append(out, a)
	}
	return out
}
