package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScoreUnmarshal(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{in: `85`, want: 85, valid: true},
		{in: `72.5`, want: 72.5, valid: true},
		{in: `"90"`, want: 90, valid: true},
		{in: `"78/100"`, want: 78, valid: true},
		{in: `"65%"`, want: 65, valid: true},
		{in: `null`},
		{in: `"excellent"`},
		{in: `{"value": 3}`},
	}
	for _, tt := range tests {
		var s Score
		require.NoError(t, json.Unmarshal([]byte(tt.in), &s), tt.in)
		assert.Equal(t, tt.valid, s.Valid, tt.in)
		assert.Equal(t, tt.want, s.Value, tt.in)
	}
}

func TestScoreMarshalAndPtr(t *testing.T) {
	data, err := json.Marshal(Score{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))

	data, err = json.Marshal(Score{Value: 81, Valid: true})
	require.NoError(t, err)
	assert.Equal(t, "81", string(data))

	assert.Nil(t, Score{}.Ptr())
	require.NotNil(t, Score{Value: 1, Valid: true}.Ptr())
}

func TestTextListTolerance(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want TextList
	}{
		{name: "字符串数组", in: `["Go", "SQL"]`, want: TextList{"Go", "SQL"}},
		{name: "null", in: `null`, want: nil},
		{name: "单个字符串", in: `"Go"`, want: TextList{"Go"}},
		{name: "空字符串", in: `""`, want: nil},
		{name: "混合元素", in: `["Go", 3, null, {"name": "Docker", "level": "expert"}, ""]`, want: TextList{"Go", "3", "Docker"}},
		{name: "未知对象原样保留", in: `[{"years": 5}]`, want: TextList{`{"years": 5}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l TextList
			require.NoError(t, json.Unmarshal([]byte(tt.in), &l))
			if tt.want == nil {
				assert.Empty(t, l)
				return
			}
			assert.Equal(t, tt.want, l)
		})
	}
}

func TestAnalyzeResponseMissingFields(t *testing.T) {
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal([]byte(`{"summary": "ok"}`), &resp))
	assert.Equal(t, FlexText("ok"), resp.Summary)
	assert.False(t, resp.Analytics.Score.Valid)
	assert.Empty(t, resp.Analytics.Skills)
	assert.False(t, resp.ModelInfo.RAGEnhanced)
	assert.Empty(t, resp.Error)
}

func TestMatchResponseExtendedFields(t *testing.T) {
	body := `{
		"analytics": {
			"score": 77,
			"skill_gaps": [{"skill": "Rust", "importance": "Low"}, {"importance": "High"}, 42],
			"salary_estimate": {"range": "$120k-$140k", "confidence": 0.7, "currency": "USD"},
			"culture_fit": {"text": "Startup friendly"},
			"keyword_density": 4.2,
			"unknown_field": [1, 2, 3]
		},
		"model_info": {"name": "gpt-4", "display_name": "GPT-4", "confidence": 88, "response_time": 2.5, "rag_enhanced": true},
		"response_time": 2.5
	}`
	var resp MatchResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))

	a := resp.Analytics
	assert.Equal(t, 77.0, a.Score.Value)
	require.Len(t, a.SkillGaps, 1, "缺少skill或非对象的元素被忽略")
	assert.Equal(t, FlexText("Rust"), a.SkillGaps[0].Skill)
	require.NotNil(t, a.SalaryEstimate)
	assert.Equal(t, FlexText("0.7"), a.SalaryEstimate.Confidence)
	assert.Equal(t, FlexText("Startup friendly"), a.CultureFit)
	assert.InDelta(t, 4.2, a.KeywordDensity.Value, 1e-9)
	assert.Equal(t, "GPT-4", resp.ModelInfo.DisplayName)
	assert.True(t, resp.ModelInfo.RAGEnhanced)
}

func TestAnalysisResultScore(t *testing.T) {
	var nilResult *AnalysisResult
	assert.False(t, nilResult.Score().Valid)

	now := time.Now()
	r := NewResumeResult(&AnalyzeResponse{Analytics: ResumeAnalytics{Score: Score{Value: 50, Valid: true}}}, []byte("{}"), now)
	assert.Equal(t, KindResume, r.Kind)
	assert.Equal(t, 50.0, r.Score().Value)
	assert.Nil(t, r.Match)

	m := NewMatchResult(&MatchResponse{Analytics: MatchAnalytics{Score: Score{Value: 90, Valid: true}}}, nil, now)
	assert.Equal(t, KindJDMatch, m.Kind)
	assert.Equal(t, 90.0, m.Score().Value)
	assert.Equal(t, now, m.ReceivedAt)
}

func TestUploadFileString(t *testing.T) {
	assert.Equal(t, "cv.pdf (12 bytes)", UploadFile{Name: "cv.pdf", Size: 12}.String())
}
