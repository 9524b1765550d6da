package entity

import (
	"testing"

	"github.com/joseph-ayodele/folder-renamer/constants"
	"github.com/stretchr/testify/assert"
)

func TestResolveLabels(t *testing.T) {
	labels := LabelsByID([]Label{{ID: "inv", Name: "Invoice"}, {ID: "rec", Name: "Receipt"}})
	matched := &LabelMatch{LabelID: "inv", Status: constants.MatchStatusMatched}
	noMatch := &LabelMatch{Status: constants.MatchStatusNoMatch}
	ambiguous := &LabelMatch{LabelID: "inv", Status: constants.MatchStatusAmbiguous}
	fallback := &LLMFallbackResult{LabelName: "Receipt", Confidence: 0.9}

	tests := []struct {
		name       string
		fl         FileLabels
		wantDet    string
		wantReport string
		wantSource constants.LabelSource
	}{
		{"override beats match", FileLabels{Override: &Override{LabelID: "rec"}, Match: matched}, "Receipt", "Receipt", constants.LabelSourceOverride},
		{"override beats no match", FileLabels{Override: &Override{LabelID: "rec"}, Match: noMatch}, "Receipt", "Receipt", constants.LabelSourceOverride},
		{"matched", FileLabels{Match: matched, Fallback: fallback}, "Invoice", "Invoice", constants.LabelSourceMatch},
		{"ambiguous is not a match", FileLabels{Match: ambiguous}, "", "", constants.LabelSourceNone},
		{"fallback only for reports", FileLabels{Match: noMatch, Fallback: fallback}, "", "Receipt", constants.LabelSourceFallback},
		{"unknown override label skipped", FileLabels{Override: &Override{LabelID: "gone"}, Match: matched}, "Invoice", "Invoice", constants.LabelSourceMatch},
		{"nothing", FileLabels{}, "", "", constants.LabelSourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det, _ := ResolveDeterministic(tt.fl, labels)
			assert.Equal(t, tt.wantDet, det.Name)
			rep, _ := ResolveForReport(tt.fl, labels)
			assert.Equal(t, tt.wantReport, rep.Name)
			assert.Equal(t, tt.wantSource, rep.Source)
		})
	}
}
