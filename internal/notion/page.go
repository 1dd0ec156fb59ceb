package notion

import "strings"

// Page is a Notion page with its dynamic property map. Property values
// keep the API's raw shape; the accessors below pull out the pieces the
// sync engine reads.
type Page struct {
	ID         string                 `json:"id"`
	Object     string                 `json:"object"`
	Properties map[string]interface{} `json:"properties"`
	Parent     map[string]interface{} `json:"parent"`
}

// Database is a Notion database object.
type Database struct {
	ID         string                   `json:"id"`
	Object     string                   `json:"object"`
	Title      []map[string]interface{} `json:"title"`
	Properties map[string]interface{}   `json:"properties"`
	Parent     map[string]interface{}   `json:"parent"`
}

// TitleText returns the database title as plain text
func (d *Database) TitleText() string {
	var sb strings.Builder
	for _, run := range d.Title {
		if s, ok := run["plain_text"].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func (p *Page) prop(name string) map[string]interface{} {
	v, ok := p.Properties[name].(map[string]interface{})
	if !ok {
		return nil
	}
	return v
}

func plainText(runs interface{}) string {
	arr, ok := runs.([]interface{})
	if !ok {
		return ""
	}
	var sb strings.Builder
	for _, r := range arr {
		run, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		if s, ok := run["plain_text"].(string); ok {
			sb.WriteString(s)
		}
	}
	return sb.String()
}

// TitleText returns the joined plain text of a title property
func (p *Page) TitleText(name string) string {
	prop := p.prop(name)
	if prop == nil {
		return ""
	}
	return plainText(prop["title"])
}

// RichText returns the joined plain text of a rich_text property
func (p *Page) RichText(name string) string {
	prop := p.prop(name)
	if prop == nil {
		return ""
	}
	return plainText(prop["rich_text"])
}

// RichTextLink returns the href of the first rich_text run, or ""
func (p *Page) RichTextLink(name string) string {
	prop := p.prop(name)
	if prop == nil {
		return ""
	}
	arr, ok := prop["rich_text"].([]interface{})
	if !ok || len(arr) == 0 {
		return ""
	}
	run, ok := arr[0].(map[string]interface{})
	if !ok {
		return ""
	}
	if href, ok := run["href"].(string); ok && href != "" {
		return href
	}
	text, ok := run["text"].(map[string]interface{})
	if !ok {
		return ""
	}
	link, ok := text["link"].(map[string]interface{})
	if !ok {
		return ""
	}
	u, _ := link["url"].(string)
	return u
}

// Number returns a number property's value; ok is false when unset
func (p *Page) Number(name string) (float64, bool) {
	prop := p.prop(name)
	if prop == nil {
		return 0, false
	}
	n, ok := prop["number"].(float64)
	return n, ok
}

// Checkbox returns a checkbox property's value
func (p *Page) Checkbox(name string) bool {
	prop := p.prop(name)
	if prop == nil {
		return false
	}
	b, _ := prop["checkbox"].(bool)
	return b
}

// DateStart returns a date property's start string, or "" when the date is null
func (p *Page) DateStart(name string) string {
	prop := p.prop(name)
	if prop == nil {
		return ""
	}
	date, ok := prop["date"].(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := date["start"].(string)
	return s
}

// SelectName returns a select property's option name, or ""
func (p *Page) SelectName(name string) string {
	prop := p.prop(name)
	if prop == nil {
		return ""
	}
	sel, ok := prop["select"].(map[string]interface{})
	if !ok {
		return ""
	}
	s, _ := sel["name"].(string)
	return s
}

// RelationIDs returns the page IDs of a relation property
func (p *Page) RelationIDs(name string) []string {
	prop := p.prop(name)
	if prop == nil {
		return nil
	}
	arr, ok := prop["relation"].([]interface{})
	if !ok {
		return nil
	}
	var ids []string
	for _, r := range arr {
		rel, ok := r.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := rel["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

// Property payload builders for page create/update bodies.

func TitleProp(text string) map[string]interface{} {
	return map[string]interface{}{
		"title": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": map[string]interface{}{"content": text},
			},
		},
	}
}

// RichTextProp builds a single-run rich_text property; empty text
// yields an empty run list rather than an empty run.
func RichTextProp(text string) map[string]interface{} {
	if text == "" {
		return map[string]interface{}{"rich_text": []interface{}{}}
	}
	return map[string]interface{}{
		"rich_text": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": map[string]interface{}{"content": text},
			},
		},
	}
}

func RichTextLinkProp(text, url string) map[string]interface{} {
	return map[string]interface{}{
		"rich_text": []interface{}{
			map[string]interface{}{
				"type": "text",
				"text": map[string]interface{}{
					"content": text,
					"link":    map[string]interface{}{"url": url},
				},
			},
		},
	}
}

func NumberProp(n float64) map[string]interface{} {
	return map[string]interface{}{"number": n}
}

func CheckboxProp(checked bool) map[string]interface{} {
	return map[string]interface{}{"checkbox": checked}
}

// DateProp builds a start-only date property; an empty start yields a
// null date object rather than omitting the property.
func DateProp(start string) map[string]interface{} {
	if start == "" {
		return map[string]interface{}{"date": nil}
	}
	return map[string]interface{}{
		"date": map[string]interface{}{"start": start},
	}
}

func SelectProp(name string) map[string]interface{} {
	return map[string]interface{}{
		"select": map[string]interface{}{"name": name},
	}
}

func RelationProp(pageIDs ...string) map[string]interface{} {
	rels := make([]interface{}, 0, len(pageIDs))
	for _, id := range pageIDs {
		rels = append(rels, map[string]interface{}{"id": id})
	}
	return map[string]interface{}{"relation": rels}
}
