package validate_test

import (
	"slices"
	"testing"

	"metaledger/internal/document"
	"metaledger/internal/validate"
)

func mustDecode(t *testing.T, raw string) document.Document {
	t.Helper()
	doc, err := document.Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return doc
}

func mustRequirements(t *testing.T, raw string) *validate.Requirements {
	t.Helper()
	req, err := validate.ParseRequirements(mustDecode(t, raw))
	if err != nil {
		t.Fatalf("ParseRequirements: %v", err)
	}
	return req
}

func TestParseRequirementsLevels(t *testing.T) {
	req := mustRequirements(t, `{
		"Course": {"CourseCode": "Required", "CourseTitle": "required", "CourseType": "Recommended", "Notes": "Optional"},
		"Instances": [{"StartDate": "Required"}]
	}`)

	if got, want := req.Fields(validate.Required), []string{"Course.CourseCode", "Course.CourseTitle", "Instances[].StartDate"}; !slices.Equal(got, want) {
		t.Fatalf("required fields = %v, want %v", got, want)
	}
	if got, want := req.Fields(validate.Recommended), []string{"Course.CourseType"}; !slices.Equal(got, want) {
		t.Fatalf("recommended fields = %v, want %v", got, want)
	}
}

func TestParseRequirementsStringListMeansRequired(t *testing.T) {
	req := mustRequirements(t, `{"Course": ["CourseCode", "CourseTitle"]}`)
	if got, want := req.Fields(validate.Required), []string{"Course.CourseCode", "Course.CourseTitle"}; !slices.Equal(got, want) {
		t.Fatalf("required fields = %v, want %v", got, want)
	}
}

func TestParseRequirementsRejectsUnknownLevel(t *testing.T) {
	if _, err := validate.ParseRequirements(mustDecode(t, `{"Course": {"CourseCode": "Mandatory"}}`)); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestCheck(t *testing.T) {
	req := mustRequirements(t, `{
		"Course": {"CourseCode": "Required", "CourseTitle": "Required", "CourseType": "Recommended"},
		"Instances": [{"StartDate": "Required"}]
	}`)

	tests := []struct {
		name        string
		doc         string
		passed      bool
		required    []string
		recommended []string
	}{
		{
			name:   "complete",
			doc:    `{"Course": {"CourseCode": "C1", "CourseTitle": "Intro", "CourseType": "Online"}, "Instances": [{"StartDate": "2024-01-01"}]}`,
			passed: true,
		},
		{
			name:        "recommended gap still passes",
			doc:         `{"Course": {"CourseCode": "C1", "CourseTitle": "Intro"}, "Instances": [{"StartDate": "2024-01-01"}]}`,
			passed:      true,
			recommended: []string{"Course.CourseType"},
		},
		{
			name:     "blank and whitespace are empty",
			doc:      `{"Course": {"CourseCode": "", "CourseTitle": "   ", "CourseType": "x"}, "Instances": [{"StartDate": "d"}]}`,
			required: []string{"Course.CourseCode", "Course.CourseTitle"},
		},
		{
			name:   "zero and false are present",
			doc:    `{"Course": {"CourseCode": 0, "CourseTitle": false, "CourseType": "x"}, "Instances": [{"StartDate": "d"}]}`,
			passed: true,
		},
		{
			name:     "indexed list element",
			doc:      `{"Course": {"CourseCode": "C1", "CourseTitle": "T", "CourseType": "x"}, "Instances": [{"StartDate": "a"}, {"StartDate": "b"}, {"StartDate": null}]}`,
			required: []string{"Instances[2].StartDate"},
		},
		{
			name:        "missing subtree",
			doc:         `{"Course": {"CourseCode": "C1", "CourseTitle": "T"}}`,
			required:    []string{"Instances[].StartDate"},
			recommended: []string{"Course.CourseType"},
		},
		{
			name:        "empty object",
			doc:         `{"Course": {}, "Instances": []}`,
			required:    []string{"Course.CourseCode", "Course.CourseTitle", "Instances[].StartDate"},
			recommended: []string{"Course.CourseType"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := validate.Check(mustDecode(t, tt.doc), req)
			if res.Passed != tt.passed {
				t.Fatalf("Passed = %v, result %+v", res.Passed, res)
			}
			if !slices.Equal(res.MissingRequired, tt.required) {
				t.Fatalf("MissingRequired = %v, want %v", res.MissingRequired, tt.required)
			}
			if !slices.Equal(res.MissingRecommended, tt.recommended) {
				t.Fatalf("MissingRecommended = %v, want %v", res.MissingRecommended, tt.recommended)
			}
		})
	}
}

func TestCheckFlatSourceKeys(t *testing.T) {
	req := mustRequirements(t, `{"LearningResourceIdentifier": "Required", "SOURCESYSTEM": "Required", "Name": "Recommended"}`)

	res := validate.Check(document.Document{"LearningResourceIdentifier": "C1", "SOURCESYSTEM": "ORG"}, req)
	if !res.Passed || !slices.Equal(res.MissingRecommended, []string{"Name"}) {
		t.Fatalf("unexpected result %+v", res)
	}

	res = validate.Check(document.Document{"SOURCESYSTEM": "ORG"}, req)
	if res.Passed || !slices.Equal(res.MissingRequired, []string{"LearningResourceIdentifier"}) {
		t.Fatalf("unexpected result %+v", res)
	}
}
