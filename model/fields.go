package model

import "encoding/json"

// EncodeFields serializes a form's field list to the document stored in the
// form row.
func EncodeFields(fields []Field) (string, error) {
	doc, err := json.Marshal(fields)
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

// DecodeFields parses the stored fields document. Older writers stored the
// document twice-encoded (a JSON string whose content is the JSON array), so
// a leading quote means one extra unwrap before the real parse.
func DecodeFields(doc string) (fields []Field, err error) {
	if len(doc) == 0 {
		return nil, nil
	}

	if doc[0] == '"' {
		var inner string
		err = json.Unmarshal([]byte(doc), &inner)
		if err != nil {
			return nil, err
		}
		doc = inner
	}

	err = json.Unmarshal([]byte(doc), &fields)
	return
}

// EncodeAnswers serializes a submission's answers map for storage.
func EncodeAnswers(answers map[string]any) (string, error) {
	doc, err := json.Marshal(answers)
	if err != nil {
		return "", err
	}
	return string(doc), nil
}

// DecodeAnswers parses a stored answers document, tolerating the same
// double-encoding as DecodeFields.
func DecodeAnswers(doc string) (answers map[string]any, err error) {
	if len(doc) == 0 {
		return map[string]any{}, nil
	}

	if doc[0] == '"' {
		var inner string
		err = json.Unmarshal([]byte(doc), &inner)
		if err != nil {
			return nil, err
		}
		doc = inner
	}

	err = json.Unmarshal([]byte(doc), &answers)
	return
}
