package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitations(t *testing.T) {
	testCases := []struct {
		description string
		text        string
		expect      []int
	}{
		{description: "single", text: "OAuth2 uses bearer tokens [1].", expect: []int{1}},
		{description: "grouped", text: "Both agree [2, 3] and [10].", expect: []int{2, 3, 10}},
		{description: "none", text: "No markers [a] here.", expect: nil},
		{description: "bracketed year", text: "Released in [2023] with support [4].", expect: []int{4}},
		{description: "zero", text: "Index [0] is not a source.", expect: nil},
	}
	for _, testCase := range testCases {
		assert.EqualValues(t, testCase.expect, Citations(testCase.text), testCase.description)
	}
}

func TestStripCitations(t *testing.T) {
	text, dropped := StripCitations("Alpha [1, 7]. Beta [9].", func(n int) bool { return n <= 3 })
	assert.Equal(t, "Alpha [1]. Beta.", text)
	assert.EqualValues(t, []int{7, 9}, dropped)

	text, dropped = StripCitations("Benchmarks from [2023] agree [2].", func(n int) bool { return n <= 3 })
	assert.Equal(t, "Benchmarks from [2023] agree [2].", text)
	assert.Empty(t, dropped)
}

func TestReportDocument_Validate(t *testing.T) {
	valid := func() *ReportDocument {
		return &ReportDocument{
			Title:       "OAuth2 in microservices",
			Sources:     []Source{{Number: 1, FindingID: "a"}, {Number: 2, FindingID: "b"}},
			Sections:    []Section{{Theme: "OAuth2", Body: "Tokens are exchanged [1].", Citations: []int{1}}},
			Conclusions: "Use a gateway [2].",
			Metadata:    Metadata{SourceCount: 2},
		}
	}
	testCases := []struct {
		description string
		mutate      func(r *ReportDocument)
		expectErr   bool
	}{
		{description: "valid", mutate: func(r *ReportDocument) {}},
		{description: "unused source tolerated", mutate: func(r *ReportDocument) { r.Conclusions = "Done." }},
		{description: "dangling body citation", mutate: func(r *ReportDocument) { r.Sections[0].Body = "See [3]." }, expectErr: true},
		{description: "dangling section reference", mutate: func(r *ReportDocument) { r.Sections[0].Citations = []int{0} }, expectErr: true},
		{description: "dangling conclusion", mutate: func(r *ReportDocument) { r.Conclusions = "See [5]." }, expectErr: true},
		{description: "gap in numbering", mutate: func(r *ReportDocument) { r.Sources[1].Number = 3 }, expectErr: true},
		{description: "count mismatch", mutate: func(r *ReportDocument) { r.Metadata.SourceCount = 5 }, expectErr: true},
	}
	for _, testCase := range testCases {
		report := valid()
		testCase.mutate(report)
		err := report.Validate()
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}
}
