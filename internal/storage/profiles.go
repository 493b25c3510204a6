package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

type UserProfile struct {
	UserID             string
	Verified           bool
	InGameName         string
	Timezone           string
	Language           string
	Alliance           string
	Nickname           string
	OnboardingStep     string
	AutoTranslate      bool
	JoinedAt           time.Time
	ProfileCompletedAt *time.Time
}

// ProfilePatch lists the columns an upsert touches. Nil fields are left alone;
// an empty Alliance or OnboardingStep clears the column.
type ProfilePatch struct {
	Verified           *bool
	InGameName         *string
	Timezone           *string
	Language           *string
	Alliance           *string
	Nickname           *string
	OnboardingStep     *string
	AutoTranslate      *bool
	ProfileCompletedAt *time.Time
}

func (p ProfilePatch) IsEmpty() bool {
	return p.Verified == nil && p.InGameName == nil && p.Timezone == nil && p.Language == nil &&
		p.Alliance == nil && p.Nickname == nil && p.OnboardingStep == nil && p.AutoTranslate == nil &&
		p.ProfileCompletedAt == nil
}

type ProfileStats struct {
	Total         int
	Verified      int
	Profiled      int
	WithAlliance  int
	AutoTranslate int
	Completed     int
}

const profileColumns = `user_id, verified, COALESCE(in_game_name, ''), COALESCE(timezone, ''),
	COALESCE(language, 'en'), COALESCE(alliance, ''), COALESCE(nickname, ''),
	COALESCE(onboarding_step, ''), auto_translate, joined_at, profile_completed_at`

func (s *Store) GetProfile(ctx context.Context, userID string) (UserProfile, bool, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+profileColumns+` FROM profiles WHERE user_id = ?`), userID)
	profile, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserProfile{}, false, nil
		}
		return UserProfile{}, false, err
	}
	return profile, true, nil
}

// UpsertProfile creates the row with column defaults (verified=0, language='en',
// auto_translate=0) or merges the patch into the existing row, in one statement.
// profile_completed_at is only ever written once.
func (s *Store) UpsertProfile(ctx context.Context, userID string, patch ProfilePatch) error {
	cols := []string{"user_id", "joined_at"}
	args := []any{userID, s.now().Unix()}
	var updates []string

	set := func(col string, value any) {
		cols = append(cols, col)
		args = append(args, value)
		updates = append(updates, col+" = excluded."+col)
	}

	if patch.Verified != nil {
		set("verified", boolToInt(*patch.Verified))
	}
	if patch.InGameName != nil {
		set("in_game_name", *patch.InGameName)
	}
	if patch.Timezone != nil {
		set("timezone", *patch.Timezone)
	}
	if patch.Language != nil {
		set("language", *patch.Language)
	}
	if patch.Alliance != nil {
		set("alliance", nullableString(*patch.Alliance))
	}
	if patch.Nickname != nil {
		set("nickname", *patch.Nickname)
	}
	if patch.OnboardingStep != nil {
		set("onboarding_step", nullableString(*patch.OnboardingStep))
	}
	if patch.AutoTranslate != nil {
		set("auto_translate", boolToInt(*patch.AutoTranslate))
	}
	if patch.ProfileCompletedAt != nil {
		cols = append(cols, "profile_completed_at")
		args = append(args, patch.ProfileCompletedAt.Unix())
		updates = append(updates, "profile_completed_at = COALESCE(profiles.profile_completed_at, excluded.profile_completed_at)")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := `INSERT INTO profiles (` + strings.Join(cols, ", ") + `) VALUES (` + placeholders + `) ON CONFLICT(user_id) DO `
	if len(updates) == 0 {
		query += `NOTHING`
	} else {
		query += `UPDATE SET ` + strings.Join(updates, ", ")
	}

	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func (s *Store) ListAutoTranslateProfiles(ctx context.Context) ([]UserProfile, error) {
	return s.queryProfiles(ctx, `SELECT `+profileColumns+` FROM profiles
		WHERE auto_translate = 1 AND language IS NOT NULL AND language <> ''
		ORDER BY user_id`)
}

func (s *Store) RecentProfiles(ctx context.Context, limit int) ([]UserProfile, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.queryProfiles(ctx, `SELECT `+profileColumns+` FROM profiles
		ORDER BY joined_at DESC, user_id LIMIT ?`, limit)
}

func (s *Store) ProfileStats(ctx context.Context) (ProfileStats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(verified), 0),
			COALESCE(SUM(CASE WHEN in_game_name IS NOT NULL AND timezone IS NOT NULL AND language IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN alliance IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(auto_translate), 0),
			COALESCE(SUM(CASE WHEN onboarding_step = 'complete' THEN 1 ELSE 0 END), 0)
		FROM profiles`)

	var stats ProfileStats
	var total, verified, profiled, alliance, translate, completed int64
	if err := row.Scan(&total, &verified, &profiled, &alliance, &translate, &completed); err != nil {
		return ProfileStats{}, err
	}
	stats.Total = int(total)
	stats.Verified = int(verified)
	stats.Profiled = int(profiled)
	stats.WithAlliance = int(alliance)
	stats.AutoTranslate = int(translate)
	stats.Completed = int(completed)
	return stats, nil
}

func (s *Store) AllianceCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alliance, COUNT(*) FROM profiles
		WHERE alliance IS NOT NULL
		GROUP BY alliance`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var alliance string
		var count int64
		if err := rows.Scan(&alliance, &count); err != nil {
			return nil, err
		}
		counts[alliance] = int(count)
	}
	return counts, rows.Err()
}

func (s *Store) queryProfiles(ctx context.Context, query string, args ...any) ([]UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []UserProfile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (UserProfile, error) {
	var p UserProfile
	var verified, autoTranslate int
	var joined int64
	var completed sql.NullInt64
	err := row.Scan(&p.UserID, &verified, &p.InGameName, &p.Timezone, &p.Language, &p.Alliance,
		&p.Nickname, &p.OnboardingStep, &autoTranslate, &joined, &completed)
	if err != nil {
		return UserProfile{}, err
	}
	p.Verified = verified == 1
	p.AutoTranslate = autoTranslate == 1
	p.JoinedAt = time.Unix(joined, 0)
	if completed.Valid {
		value := time.Unix(completed.Int64, 0)
		p.ProfileCompletedAt = &value
	}
	return p, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
