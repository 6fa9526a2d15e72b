package api

import (
	"context"

	"github.com/starford/inkday/internal/diary"
	"github.com/starford/inkday/internal/diaryservice"
	"github.com/starford/inkday/internal/index"
)

// DiaryService is what the handlers need from the diary service. Tests can
// supply a fake.
type DiaryService interface {
	Load(ctx context.Context) (*diaryservice.LoadResult, error)
	Save(ctx context.Context, req diaryservice.SaveRequest) (*diaryservice.SaveResult, error)
	Import(ctx context.Context, markdown string) (*diaryservice.SaveResult, error)
	Export(ctx context.Context) (string, error)
	GetDay(ctx context.Context, key diary.DateKey) ([]diary.Event, error)
	PutDay(ctx context.Context, key diary.DateKey, events []diary.Event) ([]diary.Event, error)
	AddEvent(ctx context.Context, key diary.DateKey, event diary.Event) ([]diary.Event, error)
	DeleteDay(ctx context.Context, key diary.DateKey) error
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	Tags(ctx context.Context) ([]index.TagCount, error)
}

var _ DiaryService = (*diaryservice.Service)(nil)
