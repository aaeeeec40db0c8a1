package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/okian/shortlist/internal/domain/model"
	"github.com/okian/shortlist/pkg/metrics"
)

// GormStore is a Store on a relational database through gorm.
// Round row locks use SELECT ... FOR UPDATE.
type GormStore struct {
	db      *gorm.DB
	backend string
}

// NewGormStore wraps an opened gorm handle. backend is reported by Backend
// and labels metrics.
func NewGormStore(db *gorm.DB, backend string) *GormStore {
	return &GormStore{db: db, backend: backend}
}

// DB exposes the underlying handle.
func (s *GormStore) DB() *gorm.DB { return s.db }

// Backend implements Store.
func (s *GormStore) Backend() string { return s.backend }

// Migrate creates or updates the tables.
func (s *GormStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Ping implements Store.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close implements Store.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InTx implements Store.
func (s *GormStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryTx(s.backend, float64(time.Since(start).Microseconds())/1000, err != nil)
	}()
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(ctx, &gormTx{db: db})
	})
}

type gormTx struct {
	db *gorm.DB
}

// translate maps gorm errors onto the package sentinels.
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w", what, ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (t *gormTx) CreateTeam(ctx context.Context, team *model.Team) error {
	row := toTeamRow(*team)
	return translate(t.db.WithContext(ctx).Create(&row).Error, "create team "+team.Key)
}

func (t *gormTx) Team(ctx context.Context, key string) (model.Team, error) {
	var row teamRow
	if err := t.db.WithContext(ctx).Where("team_key = ?", key).First(&row).Error; err != nil {
		return model.Team{}, translate(err, "team "+key)
	}
	return row.toModel(), nil
}

func (t *gormTx) Teams(ctx context.Context, f TeamFilter) ([]model.Team, error) {
	q := t.db.WithContext(ctx).Order("id")
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	var rows []teamRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err, "list teams")
	}
	out := make([]model.Team, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

func (t *gormTx) UpdateTeam(ctx context.Context, team model.Team) error {
	res := t.db.WithContext(ctx).Model(&teamRow{}).Where("team_key = ?", team.Key).Updates(map[string]any{
		"team_name":      team.Name,
		"leader_name":    team.LeaderName,
		"leader_email":   team.LeaderEmail,
		"leader_contact": team.LeaderContact,
		"status":         string(team.Status),
		"current_round":  team.CurrentRound,
		"updated_at":     team.UpdatedAt,
	})
	if res.Error != nil {
		return translate(res.Error, "update team "+team.Key)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("team %q: %w", team.Key, ErrNotFound)
	}
	return nil
}

func (t *gormTx) SetTeamStatus(ctx context.Context, keys []string, status model.TeamStatus, now time.Time) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res := t.db.WithContext(ctx).Model(&teamRow{}).
		Where("team_key IN ? AND status <> ?", keys, string(status)).
		Updates(map[string]any{"status": string(status), "updated_at": now})
	if res.Error != nil {
		return 0, translate(res.Error, "set team status")
	}
	return int(res.RowsAffected), nil
}

func (t *gormTx) CreateRound(ctx context.Context, r *model.Round) error {
	row, err := toRoundRow(*r)
	if err != nil {
		return err
	}
	row.ID = 0
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		return translate(err, fmt.Sprintf("create round %s/%d", r.EventID, r.Number))
	}
	r.ID = row.ID
	return nil
}

func (t *gormTx) Round(ctx context.Context, id int64, forUpdate bool) (model.Round, error) {
	q := t.db.WithContext(ctx)
	if forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row roundRow
	if err := q.Where("id = ?", id).First(&row).Error; err != nil {
		return model.Round{}, translate(err, fmt.Sprintf("round %d", id))
	}
	return row.toModel()
}

func (t *gormTx) Rounds(ctx context.Context, f RoundFilter) ([]model.Round, error) {
	q := t.db.WithContext(ctx).Order("event_id, round_number, id")
	if f.EventID != "" {
		q = q.Where("event_id = ?", f.EventID)
	}
	if f.InScope {
		q = q.Where("is_frozen = ? OR is_evaluated = ?", true, true)
	}
	if f.Lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rows []roundRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err, "list rounds")
	}
	out := make([]model.Round, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *gormTx) UpdateRound(ctx context.Context, r model.Round) error {
	row, err := toRoundRow(r)
	if err != nil {
		return err
	}
	res := t.db.WithContext(ctx).Model(&roundRow{ID: r.ID}).Select("*").Omit("id", "created_at").Updates(&row)
	if res.Error != nil {
		return translate(res.Error, fmt.Sprintf("update round %d", r.ID))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("round %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (t *gormTx) DeleteRound(ctx context.Context, id int64) error {
	db := t.db.WithContext(ctx)
	if err := db.Where("round_id = ?", id).Delete(&teamScoreRow{}).Error; err != nil {
		return translate(err, fmt.Sprintf("delete scores of round %d", id))
	}
	if err := db.Where("round_id = ?", id).Delete(&roundWeightRow{}).Error; err != nil {
		return translate(err, fmt.Sprintf("delete weight of round %d", id))
	}
	res := db.Where("id = ?", id).Delete(&roundRow{})
	if res.Error != nil {
		return translate(res.Error, fmt.Sprintf("delete round %d", id))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("round %d: %w", id, ErrNotFound)
	}
	return nil
}

func (t *gormTx) Score(ctx context.Context, roundID int64, teamKey string) (model.TeamScore, error) {
	var row teamScoreRow
	err := t.db.WithContext(ctx).Where("round_id = ? AND team_key = ?", roundID, teamKey).First(&row).Error
	if err != nil {
		return model.TeamScore{}, translate(err, fmt.Sprintf("score %d/%s", roundID, teamKey))
	}
	return row.toModel()
}

func (t *gormTx) Scores(ctx context.Context, f ScoreFilter) ([]model.TeamScore, error) {
	q := t.db.WithContext(ctx).Order("id")
	if f.RoundID != 0 {
		q = q.Where("round_id = ?", f.RoundID)
	}
	if f.TeamKey != "" {
		q = q.Where("team_key = ?", f.TeamKey)
	}
	var rows []teamScoreRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, translate(err, "list scores")
	}
	out := make([]model.TeamScore, 0, len(rows))
	for _, r := range rows {
		m, err := r.toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (t *gormTx) UpsertScore(ctx context.Context, s *model.TeamScore) error {
	row, err := toScoreRow(*s)
	if err != nil {
		return err
	}
	row.ID = 0
	db := t.db.WithContext(ctx)
	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "team_key"}, {Name: "round_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"raw_total_score", "score", "criteria_scores", "is_normalized", "is_present", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return translate(err, fmt.Sprintf("upsert score %d/%s", s.RoundID, s.TeamKey))
	}
	// the conflict path does not report the existing id on every dialect
	var stored teamScoreRow
	if err := db.Select("id", "created_at").Where("round_id = ? AND team_key = ?", s.RoundID, s.TeamKey).First(&stored).Error; err != nil {
		return translate(err, fmt.Sprintf("reload score %d/%s", s.RoundID, s.TeamKey))
	}
	s.ID = stored.ID
	s.CreatedAt = stored.CreatedAt
	return nil
}

func (t *gormTx) roundExists(ctx context.Context, id int64) error {
	var n int64
	if err := t.db.WithContext(ctx).Model(&roundRow{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return translate(err, fmt.Sprintf("round %d", id))
	}
	if n == 0 {
		return fmt.Errorf("round %d: %w", id, ErrNotFound)
	}
	return nil
}

// currentRows reads the latest committed rows. Under REPEATABLE READ a plain
// read keeps the snapshot taken by the first read of the transaction and
// misses a row a concurrent creator committed since.
func currentRows(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "SHARE"})
}

func (t *gormTx) WeightOrDefault(ctx context.Context, roundID int64, def float64) (model.RoundWeight, bool, error) {
	if err := t.roundExists(ctx, roundID); err != nil {
		return model.RoundWeight{}, false, err
	}
	db := t.db.WithContext(ctx)
	row := roundWeightRow{RoundID: roundID, Percentage: def}
	// a concurrent creator makes this a no-op instead of a unique violation
	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "round_id"}}, DoNothing: true}).Create(&row)
	if res.Error != nil {
		return model.RoundWeight{}, false, translate(res.Error, fmt.Sprintf("create weight %d", roundID))
	}
	var stored roundWeightRow
	if err := currentRows(db).Where("round_id = ?", roundID).First(&stored).Error; err != nil {
		return model.RoundWeight{}, false, translate(err, fmt.Sprintf("weight %d", roundID))
	}
	return model.RoundWeight{RoundID: roundID, Percentage: stored.Percentage}, res.RowsAffected > 0, nil
}

func (t *gormTx) WeightsOrDefault(ctx context.Context, roundIDs []int64, def float64) (map[int64]float64, int, error) {
	out := make(map[int64]float64, len(roundIDs))
	if len(roundIDs) == 0 {
		return out, 0, nil
	}
	db := t.db.WithContext(ctx)
	var rows []roundWeightRow
	if err := db.Where("round_id IN ?", roundIDs).Find(&rows).Error; err != nil {
		return nil, 0, translate(err, "list weights")
	}
	for _, r := range rows {
		out[r.RoundID] = r.Percentage
	}
	var missing []roundWeightRow
	var missingIDs []int64
	for _, id := range roundIDs {
		if _, ok := out[id]; !ok {
			missing = append(missing, roundWeightRow{RoundID: id, Percentage: def})
			missingIDs = append(missingIDs, id)
		}
	}
	if len(missing) == 0 {
		return out, 0, nil
	}
	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "round_id"}}, DoNothing: true}).Create(&missing)
	if res.Error != nil {
		return nil, 0, translate(res.Error, "create default weights")
	}
	rows = rows[:0]
	if err := currentRows(db).Where("round_id IN ?", missingIDs).Find(&rows).Error; err != nil {
		return nil, 0, translate(err, "reload weights")
	}
	for _, r := range rows {
		out[r.RoundID] = r.Percentage
	}
	return out, int(res.RowsAffected), nil
}

func (t *gormTx) PutWeight(ctx context.Context, w model.RoundWeight) error {
	if err := t.roundExists(ctx, w.RoundID); err != nil {
		return err
	}
	row := roundWeightRow{RoundID: w.RoundID, Percentage: w.Percentage}
	err := t.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "round_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"weight_percentage", "updated_at"}),
	}).Create(&row).Error
	return translate(err, fmt.Sprintf("put weight %d", w.RoundID))
}
