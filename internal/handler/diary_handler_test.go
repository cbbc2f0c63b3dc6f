package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"maumon/internal/model"
	"maumon/pkg/cipher"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/assert/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeDiaryStore struct {
	diaries   map[string]*model.Diary
	insertErr error
}

func newFakeDiaryStore() *fakeDiaryStore {
	return &fakeDiaryStore{diaries: make(map[string]*model.Diary)}
}

func (f *fakeDiaryStore) Insert(ctx context.Context, d *model.Diary) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	d.ID = primitive.NewObjectID()
	d.CreatedAt = time.Now().UTC()
	d.ThreadStatus = model.StatusPending
	f.diaries[d.ID.Hex()] = d
	return nil
}

func (f *fakeDiaryStore) GetByID(ctx context.Context, id string) (*model.Diary, error) {
	d, ok := f.diaries[id]
	if !ok {
		return nil, nil
	}
	return d, nil
}

func (f *fakeDiaryStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Diary, error) {
	var out []model.Diary
	for _, d := range f.diaries {
		if string(d.UserID) == userID {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (f *fakeDiaryStore) CountByUser(ctx context.Context, userID string) (int, error) {
	list, _ := f.ListByUser(ctx, userID, 0, 0)
	return len(list), nil
}

type fakeQueue struct {
	payloads   []string
	enqueueErr error
}

func (f *fakeQueue) Enqueue(ctx context.Context, payload string) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func testCipher(t *testing.T) *cipher.Cipher {
	t.Helper()
	key := make([]byte, 32)
	rand.Read(key)
	c, err := cipher.New(base64.StdEncoding.EncodeToString(key))
	assert.Equal(t, nil, err)
	return c
}

func newTestRouter(store DiaryStore, queue AnalyzeQueue, ciph *cipher.Cipher) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewDiaryHandler(store, queue, ciph)
	r.POST("/api/diaries", h.CreateDiary)
	r.GET("/api/diaries/:id", h.GetDiary)
	r.GET("/api/diaries", h.ListDiaries)
	return r
}

func TestCreateDiary(t *testing.T) {
	store := newFakeDiaryStore()
	queue := &fakeQueue{}
	ciph := testCipher(t)
	r := newTestRouter(store, queue, ciph)

	body := `{"user_id":"u-1","date":"2026-08-30","event":"오늘 친구들과 즐거운 시간을 보냈다","emotion_desc":"행복했다"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/diaries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var res CreateDiaryResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.NotEqual(t, "", res.DiaryID)
	assert.NotEqual(t, "", res.TaskID)
	assert.Equal(t, model.StatusPending, res.ThreadStatus)

	// stored fields must be ciphertext
	stored := store.diaries[res.DiaryID]
	assert.Equal(t, true, cipher.IsCiphertext(stored.Event))
	assert.Equal(t, true, cipher.IsCiphertext(stored.EmotionDesc))

	event, err := ciph.Decrypt(stored.Event)
	assert.Equal(t, nil, err)
	assert.Equal(t, "오늘 친구들과 즐거운 시간을 보냈다", event)

	// exactly one analyze job for the new diary
	assert.Equal(t, 1, len(queue.payloads))
	var job model.AnalyzeJob
	json.Unmarshal([]byte(queue.payloads[0]), &job)
	assert.Equal(t, res.DiaryID, job.DiaryID)
	assert.Equal(t, 0, job.Attempt)
}

func TestCreateDiaryRejectsBadBody(t *testing.T) {
	r := newTestRouter(newFakeDiaryStore(), &fakeQueue{}, testCipher(t))

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"user_id":"u-1","date":"2026-08-30"}`,
		`{"user_id":"u-1","date":"30-08-2026","event":"x"}`,
	} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/diaries", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestCreateDiaryEnqueueFailure(t *testing.T) {
	store := newFakeDiaryStore()
	queue := &fakeQueue{enqueueErr: errors.New("redis down")}
	r := newTestRouter(store, queue, testCipher(t))

	body := `{"user_id":"u-1","date":"2026-08-30","event":"x"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/diaries", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	// the diary itself is stored and stays pending for a manual re-enqueue
	assert.Equal(t, 1, len(store.diaries))
}

func TestGetDiaryNotFound(t *testing.T) {
	r := newTestRouter(newFakeDiaryStore(), &fakeQueue{}, testCipher(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/diaries/"+primitive.NewObjectID().Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetDiaryDecryptsFields(t *testing.T) {
	store := newFakeDiaryStore()
	ciph := testCipher(t)
	r := newTestRouter(store, &fakeQueue{}, ciph)

	encEvent, _ := ciph.Encrypt("오늘 너무 우울했다")
	encDesc, _ := ciph.Encrypt("기운이 없었다")
	encComment, _ := ciph.Encrypt("힘든 하루였군요.")
	encAdvice, _ := ciph.Encrypt("힘든 하루였군요.")

	now := time.Now().UTC()
	id := primitive.NewObjectID()
	store.diaries[id.Hex()] = &model.Diary{
		ID:           id,
		UserID:       "u-1",
		Date:         "2026-08-30",
		CreatedAt:    now,
		Event:        encEvent,
		EmotionDesc:  encDesc,
		AIPrediction: "우울해 (90.0%)",
		AIComment:    encComment,
		AIAdvice:     encAdvice,
		ThreadStatus: model.StatusDone,
		CompletedAt:  &now,
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/diaries/"+id.Hex(), nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res DiaryResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, "오늘 너무 우울했다", res.Event)
	assert.Equal(t, "기운이 없었다", res.EmotionDesc)
	assert.Equal(t, "우울해 (90.0%)", res.AIPrediction)
	assert.Equal(t, "힘든 하루였군요.", res.AIComment)
	assert.Equal(t, model.StatusDone, res.ThreadStatus)
	assert.NotEqual(t, "", res.CompletedAt)
}

func TestListDiariesRequiresUserID(t *testing.T) {
	r := newTestRouter(newFakeDiaryStore(), &fakeQueue{}, testCipher(t))

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/diaries", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDiaries(t *testing.T) {
	store := newFakeDiaryStore()
	ciph := testCipher(t)
	r := newTestRouter(store, &fakeQueue{}, ciph)

	encEvent, _ := ciph.Encrypt("그냥 하루")
	encDesc, _ := ciph.Encrypt("")
	id := primitive.NewObjectID()
	store.diaries[id.Hex()] = &model.Diary{
		ID:           id,
		UserID:       "u-1",
		Date:         "2026-08-29",
		CreatedAt:    time.Now().UTC(),
		Event:        encEvent,
		EmotionDesc:  encDesc,
		ThreadStatus: model.StatusPending,
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/diaries?user_id=u-1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var res DiariesResponse
	json.Unmarshal(w.Body.Bytes(), &res)
	assert.Equal(t, 1, len(res.Diaries))
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, "그냥 하루", res.Diaries[0].Event)

	// pending diaries expose no AI fields
	assert.Equal(t, "", res.Diaries[0].AIPrediction)
	assert.Equal(t, "", res.Diaries[0].AIComment)
}
