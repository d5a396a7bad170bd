package tagutil

import "github.com/viant/tagly/format/text"

// FormatName converts a Go field name into caseFormat.
func FormatName(fieldName string, caseFormat text.CaseFormat) string {
	if caseFormat == text.CaseFormatUndefined {
		return fieldName
	}
	if fieldName == "ID" {
		switch caseFormat {
		case text.CaseFormatLower, text.CaseFormatLowerCamel, text.CaseFormatLowerUnderscore:
			return "id"
		}
	}
	src := text.DetectCaseFormat(fieldName)
	if !src.IsDefined() {
		src = text.CaseFormatUpperCamel
	}
	return src.Format(fieldName, caseFormat)
}
