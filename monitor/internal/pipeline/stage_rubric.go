package pipeline

import "fmt"

// RubricInput данные окна для балльной шкалы
type RubricInput struct {
	Now       int
	WindowSec int
	FS        int
	// FHR сырые значения ЧСС окна без NaN
	FHR           []float64
	Baseline      *float64
	Accelerations []Acceleration
	Decelerations []Deceleration
}

// Scorer критерии одной балльной шкалы, 0–2 балла за критерий
type Scorer interface {
	Name() string
	Title() string
	Kind() NotificationKind
	Score(in RubricInput) map[string]int
}

// RubricStage периодическая оценка по балльной шкале со своим окном.
// Уведомляет только при изменении суммы баллов.
type RubricStage struct {
	cfg    RubricConfig
	fs     int
	scorer Scorer
	slot   func(st *State) **RubricResult
}

// NewSavelyevaStage шкала Фишера в модификации Савельевой
func NewSavelyevaStage(cfg RubricConfig, fs int) *RubricStage {
	return &RubricStage{
		cfg:    cfg,
		fs:     fs,
		scorer: SavelyevaScorer{},
		slot:   func(st *State) **RubricResult { return &st.Snap.Savelyeva },
	}
}

// NewFischerStage классическая шкала Фишера
func NewFischerStage(cfg RubricConfig, fs int) *RubricStage {
	return &RubricStage{
		cfg:    cfg,
		fs:     fs,
		scorer: FischerScorer{},
		slot:   func(st *State) **RubricResult { return &st.Snap.Fischer },
	}
}

func (s *RubricStage) Name() string { return s.scorer.Name() }

func (s *RubricStage) Tick(st *State) error {
	if !due(st.Now, s.cfg.EvalEverySec) {
		return nil
	}

	in := s.input(st)
	criteria := s.scorer.Score(in)

	total := 0
	for name, pts := range criteria {
		if pts < 0 || pts > 2 {
			return fmt.Errorf("%w: %s criterion %s scored %d", ErrInvariant, s.scorer.Name(), name, pts)
		}
		total += pts
	}
	category, color := RubricCategory(total)

	slot := s.slot(st)
	if *slot == nil || (*slot).Total != total {
		st.notify(s.scorer.Kind(), color, "%s score: %d (%s)", s.scorer.Title(), total, category)
	}
	*slot = &RubricResult{Total: total, Category: category, Criteria: criteria}
	return nil
}

func (s *RubricStage) input(st *State) RubricInput {
	lo := max(0, st.Now-s.cfg.WindowSec+1)
	since := st.Now - s.cfg.WindowSec

	in := RubricInput{
		Now:       st.Now,
		WindowSec: s.cfg.WindowSec,
		FS:        s.fs,
		FHR:       fhrValues(st.windowFrom(float64(lo))),
		Baseline:  st.Snap.MedianFHR10Min,
	}
	for _, a := range st.Events.Accelerations {
		if a.Start >= since {
			in.Accelerations = append(in.Accelerations, a)
		}
	}
	for _, d := range st.Events.Decelerations {
		if d.Start >= since {
			in.Decelerations = append(in.Decelerations, d)
		}
	}
	return in
}

// RubricCategory: от 8 баллов норма, от 5 сомнительное, иначе патологическое
func RubricCategory(total int) (string, Color) {
	switch {
	case total >= 8:
		return LabelNormal, ColorGreen
	case total >= 5:
		return LabelSuspicious, ColorYellow
	default:
		return LabelPathological, ColorRed
	}
}
