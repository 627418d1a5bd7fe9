package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"unicode"

	"github.com/beevik/etree"
)

// encodeXML renders v the way it renders as JSON, one element per key in
// key order. Array items become <item> elements, or itemName elements for a
// top-level array; null becomes an empty element with nil="true".
func encodeXML(root string, v any) (*etree.Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	el := doc.CreateElement(root)
	if err := buildXML(dec, el, itemName(root)); err != nil {
		return nil, fmt.Errorf("failed to build xml: %w", err)
	}
	doc.Indent(2)
	return doc, nil
}

func buildXML(dec *json.Decoder, el *etree.Element, item string) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			for dec.More() {
				key, err := dec.Token()
				if err != nil {
					return err
				}
				name, _ := key.(string)
				if err := buildXML(dec, el.CreateElement(elementName(name)), "item"); err != nil {
					return err
				}
			}
		case '[':
			for dec.More() {
				if err := buildXML(dec, el.CreateElement(item), "item"); err != nil {
					return err
				}
			}
		}
		// closing delimiter
		_, err = dec.Token()
		return err
	case nil:
		el.CreateAttr("nil", "true")
	case string:
		el.SetText(t)
	case json.Number:
		el.SetText(t.String())
	case bool:
		el.SetText(strconv.FormatBool(t))
	}
	return nil
}

// elementName maps a JSON key to a valid XML element name.
func elementName(key string) string {
	if key == "" {
		return "item"
	}
	r := []rune(key)[0]
	if !unicode.IsLetter(r) && r != '_' {
		return "_" + key
	}
	return key
}

func itemName(root string) string {
	if root == collectionSegment {
		return "calendarevent"
	}
	return "item"
}
