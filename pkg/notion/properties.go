package notion

import "github.com/jomei/notionapi"

// Notion rejects rich-text segments longer than this.
const maxTextLen = 2000

func richText(s string) []notionapi.RichText {
	if len(s) > maxTextLen {
		s = s[:maxTextLen]
	}
	return []notionapi.RichText{
		{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
	}
}

// Title builds a title property.
func Title(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{Type: notionapi.PropertyTypeTitle, Title: richText(s)}
}

// Text builds a rich-text property.
func Text(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(s)}
}

// Select builds a select property.
func Select(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: name}}
}

// Number builds a number property.
func Number(f float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: f}
}
