package history

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"resume-screener-go/internal/storage"
	"resume-screener-go/internal/storage/models"
	"resume-screener-go/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReports struct {
	keys map[string][]byte
	err  error
}

func (f *fakeReports) UploadReport(ctx context.Context, recordID string, data []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := storage.ReportObjectKey(recordID)
	f.keys[key] = data
	return key, nil
}

type fakeArchive struct {
	records []*models.ScreeningRecord
	msgs    []*models.OutboxMessage
	err     error
}

func (f *fakeArchive) CreateScreeningWithOutbox(ctx context.Context, record *models.ScreeningRecord, msg *models.OutboxMessage) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeArchive) ListScreenings(ctx context.Context, q storage.ScreeningQuery) ([]models.ScreeningRecord, error) {
	var out []models.ScreeningRecord
	for i := len(f.records) - 1; i >= 0; i-- {
		r := f.records[i]
		if q.SessionID != "" && r.SessionID != q.SessionID {
			continue
		}
		out = append(out, *r)
	}
	return out, f.err
}

type fakeRecent struct {
	items map[string][]storage.RecentResult
	ttl   time.Duration
}

func (f *fakeRecent) PushRecentResult(ctx context.Context, sessionID string, result storage.RecentResult, limit int, ttl time.Duration) error {
	f.items[sessionID] = append([]storage.RecentResult{result}, f.items[sessionID]...)
	f.ttl = ttl
	return nil
}

func (f *fakeRecent) RecentResults(ctx context.Context, sessionID string, limit int) ([]storage.RecentResult, error) {
	return f.items[sessionID], nil
}

func fixedID(id string) func() (string, error) {
	return func() (string, error) { return id, nil }
}

var resumeFile = types.UploadFile{Name: "/tmp/alice.pdf", Size: 5, Content: []byte("hello")}

func resumeResult() *types.AnalysisResult {
	return types.NewResumeResult(&types.AnalyzeResponse{
		Summary: "Strong engineer",
		Analytics: types.ResumeAnalytics{
			Score:  types.Score{Value: 84, Valid: true},
			Skills: types.TextList{"Go", "SQL"},
		},
		ModelInfo: types.ModelInfo{Name: "gpt-4", RAGEnhanced: true, ResponseTime: types.Score{Value: 1.5, Valid: true}},
	}, []byte(`{"summary":"Strong engineer"}`), time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
}

func TestRecordWritesAllTargets(t *testing.T) {
	reports := &fakeReports{keys: map[string][]byte{}}
	archive := &fakeArchive{}
	recent := &fakeRecent{items: map[string][]storage.RecentResult{}}

	rec := NewRecorder("s-1",
		WithIDGenerator(fixedID("rec-1")),
		WithReportStore(reports),
		WithArchive(archive),
		WithRecentCache(recent, time.Hour),
		WithEvents(EventTarget{Exchange: "screening.events.exchange", RoutingKey: "screening.completed"}),
	)
	require.True(t, rec.Enabled())
	rec.Record(context.Background(), resumeFile, resumeResult())

	assert.Equal(t, `{"summary":"Strong engineer"}`, string(reports.keys["reports/rec-1.json"]))

	require.Len(t, archive.records, 1)
	r := archive.records[0]
	assert.Equal(t, "rec-1", r.RecordID)
	assert.Equal(t, "s-1", r.SessionID)
	assert.Equal(t, "resume", r.Kind)
	assert.Equal(t, "alice.pdf", r.FileName)
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", r.FileMD5)
	require.NotNil(t, r.Score)
	assert.Equal(t, 84.0, *r.Score)
	assert.Equal(t, "good", r.ScoreBand)
	assert.True(t, r.RAGEnhanced)
	assert.Equal(t, "gpt-4", r.ModelName)
	assert.Equal(t, "reports/rec-1.json", r.ReportObjectKey)
	assert.JSONEq(t, `{"skills":["Go","SQL"]}`, string(r.KeywordsJSON))
	assert.Empty(t, r.JDMD5)

	require.Len(t, archive.msgs, 1)
	msg := archive.msgs[0]
	require.NotNil(t, msg)
	assert.Equal(t, "rec-1", msg.AggregateID)
	assert.Equal(t, storage.EventScreeningCompleted, msg.EventType)
	assert.Equal(t, models.OutboxStatusPending, msg.Status)
	var event storage.ScreeningCompletedEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, "reports/rec-1.json", event.ReportObjectKey)
	assert.Equal(t, "good", event.ScoreBand)

	require.Len(t, recent.items["s-1"], 1)
	assert.Equal(t, "rec-1", recent.items["s-1"][0].RecordID)
	assert.Equal(t, time.Hour, recent.ttl)
}

func TestRecordMatchWithoutEvents(t *testing.T) {
	archive := &fakeArchive{}
	rec := NewRecorder("s-1", WithIDGenerator(fixedID("rec-2")), WithArchive(archive))

	result := types.NewMatchResult(&types.MatchResponse{
		Analytics: types.MatchAnalytics{
			Score:           types.Score{Value: 55, Valid: true},
			MatchedKeywords: types.TextList{"Go"},
			MissingKeywords: types.TextList{"Kafka"},
		},
	}, nil, time.Now())
	result.JobDescription = "Go developer"
	rec.Record(context.Background(), resumeFile, result)

	require.Len(t, archive.records, 1)
	r := archive.records[0]
	assert.Equal(t, "jd_match", r.Kind)
	assert.Equal(t, "poor", r.ScoreBand)
	assert.NotEmpty(t, r.JDMD5)
	assert.Empty(t, r.ReportObjectKey, "没有原始报告时不上传")
	assert.JSONEq(t, `{"matched":["Go"],"missing":["Kafka"]}`, string(r.KeywordsJSON))
	assert.Nil(t, archive.msgs[0], "未配置交换机时不写发件箱")
}

func TestRecordFailuresAreSwallowed(t *testing.T) {
	reports := &fakeReports{err: errors.New("minio down")}
	archive := &fakeArchive{err: errors.New("mysql down")}
	recent := &fakeRecent{items: map[string][]storage.RecentResult{}}
	rec := NewRecorder("s-1",
		WithIDGenerator(fixedID("rec-3")),
		WithReportStore(reports),
		WithArchive(archive),
		WithRecentCache(recent, 0),
	)

	assert.NotPanics(t, func() { rec.Record(context.Background(), resumeFile, resumeResult()) })
	assert.Len(t, recent.items["s-1"], 1, "其他目标继续写入")
}

func TestRecordDisabled(t *testing.T) {
	var nilRec *Recorder
	assert.False(t, nilRec.Enabled())
	nilRec.Record(context.Background(), resumeFile, resumeResult())

	rec := NewRecorder("s-1")
	assert.False(t, rec.Enabled())
	rec.Record(context.Background(), resumeFile, resumeResult())
}

func TestNoScoreRecordsNilScore(t *testing.T) {
	archive := &fakeArchive{}
	rec := NewRecorder("s-1", WithIDGenerator(fixedID("rec-4")), WithArchive(archive))
	rec.Record(context.Background(), resumeFile, types.NewResumeResult(&types.AnalyzeResponse{}, nil, time.Time{}))

	require.Len(t, archive.records, 1)
	assert.Nil(t, archive.records[0].Score)
	assert.Empty(t, archive.records[0].ScoreBand)
	assert.False(t, archive.records[0].CreatedAt.IsZero())
}

func TestNewRecordIDIsV7(t *testing.T) {
	id, err := newRecordID()
	require.NoError(t, err)
	assert.Len(t, id, 36)
	assert.Equal(t, byte('7'), id[14])
}

func TestListerPrefersArchive(t *testing.T) {
	archive := &fakeArchive{}
	rec := NewRecorder("s-1", WithIDGenerator(fixedID("rec-1")), WithArchive(archive))
	rec.Record(context.Background(), resumeFile, resumeResult())

	entries, err := NewLister(archive, &fakeRecent{}).List(context.Background(), Query{SessionID: "s-1", Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "rec-1", entries[0].RecordID)
	assert.Equal(t, "good", entries[0].Band)
}

func TestListerFallsBackToRecent(t *testing.T) {
	score := 70.0
	recent := &fakeRecent{items: map[string][]storage.RecentResult{
		"s-1": {{RecordID: "r9", Kind: "resume", Score: &score, Band: "fair"}},
	}}

	entries, err := NewLister(nil, recent).List(context.Background(), Query{SessionID: "s-1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s-1", entries[0].SessionID)

	_, err = NewLister(nil, recent).List(context.Background(), Query{})
	assert.ErrorIs(t, err, ErrNoHistorySource)
	_, err = NewLister(nil, nil).List(context.Background(), Query{SessionID: "s-1"})
	assert.ErrorIs(t, err, ErrNoHistorySource)
}
