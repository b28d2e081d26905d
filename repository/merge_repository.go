package repository

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"showmerge/model"

	"gorm.io/gorm"
)

// ErrRecordNotFound is returned when no run has the requested id.
var ErrRecordNotFound = errors.New("merge record not found")

// MergeRepository 合并运行记录访问接口
type MergeRepository interface {
	Create(ctx context.Context, record *model.MergeRecord) error
	UpdateStage(ctx context.Context, id string, update StageUpdate) error
	Complete(ctx context.Context, id string, result *model.MergeResult) error
	Fail(ctx context.Context, id, stage, kind, message string) error
	GetByID(ctx context.Context, id string) (*model.MergeRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*model.MergeRecord, error)
}

// StageUpdate is the progress of a running merge. Empty fields are left
// unchanged.
type StageUpdate struct {
	Stage        string
	Show         string
	Folder       string
	SegmentCount int
}

// gormMergeRepository GORM 实现
type gormMergeRepository struct {
	db *gorm.DB
}

// NewGormMergeRepository 创建 GORM 合并记录仓库
func NewGormMergeRepository(db *gorm.DB) MergeRepository {
	return &gormMergeRepository{db: db}
}

// Create 创建运行记录
func (r *gormMergeRepository) Create(ctx context.Context, record *model.MergeRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// UpdateStage 更新当前阶段
func (r *gormMergeRepository) UpdateStage(ctx context.Context, id string, update StageUpdate) error {
	updates := map[string]interface{}{"stage": update.Stage}
	if update.Show != "" {
		updates["show_name"] = update.Show
	}
	if update.Folder != "" {
		updates["folder"] = update.Folder
	}
	if update.SegmentCount > 0 {
		updates["segment_count"] = update.SegmentCount
	}
	return r.db.WithContext(ctx).Model(&model.MergeRecord{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Complete 标记运行成功
func (r *gormMergeRepository) Complete(ctx context.Context, id string, result *model.MergeResult) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.MergeRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stage":         model.StatusSucceeded,
			"status":        model.StatusSucceeded,
			"audio_url":     result.FinalAudioURL,
			"chapters_url":  result.ChaptersURL,
			"total_seconds": result.TotalSeconds,
			"finished_at":   &now,
		}).Error
}

// Fail 标记运行失败
func (r *gormMergeRepository) Fail(ctx context.Context, id, stage, kind, message string) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.MergeRecord{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"stage":         stage,
			"status":        model.StatusFailed,
			"error_kind":    kind,
			"error_message": message,
			"finished_at":   &now,
		}).Error
}

// GetByID 根据ID获取运行记录
func (r *gormMergeRepository) GetByID(ctx context.Context, id string) (*model.MergeRecord, error) {
	var record model.MergeRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &record, nil
}

// ListRecent 获取最近的运行记录
func (r *gormMergeRepository) ListRecent(ctx context.Context, limit int) ([]*model.MergeRecord, error) {
	var records []*model.MergeRecord
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// memoryMergeRepository keeps records in process memory when MySQL is disabled.
type memoryMergeRepository struct {
	mu      sync.RWMutex
	records map[string]*model.MergeRecord
	max     int
}

// NewMemoryMergeRepository creates a repository holding at most max records;
// the oldest are evicted first.
func NewMemoryMergeRepository(max int) MergeRepository {
	if max <= 0 {
		max = 200
	}
	return &memoryMergeRepository{records: make(map[string]*model.MergeRecord), max: max}
}

func (r *memoryMergeRepository) Create(_ context.Context, record *model.MergeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	cp := *record
	r.records[record.ID] = &cp

	if len(r.records) > r.max {
		oldest := ""
		for id, rec := range r.records {
			if oldest == "" || rec.CreatedAt.Before(r.records[oldest].CreatedAt) {
				oldest = id
			}
		}
		delete(r.records, oldest)
	}
	return nil
}

func (r *memoryMergeRepository) update(id string, fn func(*model.MergeRecord)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return nil
}

func (r *memoryMergeRepository) UpdateStage(_ context.Context, id string, update StageUpdate) error {
	return r.update(id, func(rec *model.MergeRecord) {
		rec.Stage = update.Stage
		if update.Show != "" {
			rec.ShowName = update.Show
		}
		if update.Folder != "" {
			rec.Folder = update.Folder
		}
		if update.SegmentCount > 0 {
			rec.SegmentCount = update.SegmentCount
		}
	})
}

func (r *memoryMergeRepository) Complete(_ context.Context, id string, result *model.MergeResult) error {
	return r.update(id, func(rec *model.MergeRecord) {
		now := time.Now()
		rec.Stage = model.StatusSucceeded
		rec.Status = model.StatusSucceeded
		rec.AudioURL = result.FinalAudioURL
		rec.ChaptersURL = result.ChaptersURL
		rec.TotalSeconds = result.TotalSeconds
		rec.FinishedAt = &now
	})
}

func (r *memoryMergeRepository) Fail(_ context.Context, id, stage, kind, message string) error {
	return r.update(id, func(rec *model.MergeRecord) {
		now := time.Now()
		rec.Stage = stage
		rec.Status = model.StatusFailed
		rec.ErrorKind = kind
		rec.ErrorMessage = message
		rec.FinishedAt = &now
	})
}

func (r *memoryMergeRepository) GetByID(_ context.Context, id string) (*model.MergeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (r *memoryMergeRepository) ListRecent(_ context.Context, limit int) ([]*model.MergeRecord, error) {
	r.mu.RLock()
	out := make([]*model.MergeRecord, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
