package model

// Section は詳細画面で独立して読み込まれる単位（種族・映画・惑星）を表す。
type Section string

const (
	// SectionSpecies は種族セクション。
	SectionSpecies Section = "species"
	// SectionFilms は映画セクション。
	SectionFilms Section = "films"
	// SectionPlanet は惑星セクション。
	SectionPlanet Section = "planet"
)

// AllSections は詳細セッションが読み込む全セクションを固定順で返す。
func AllSections() []Section {
	return []Section{SectionSpecies, SectionFilms, SectionPlanet}
}

// SectionStatus はセクションごとの読み込み状態を表す。
type SectionStatus string

const (
	// SectionStatusLoading は取得中。
	SectionStatusLoading SectionStatus = "loading"
	// SectionStatusLoaded は取得完了（空の結果を含む）。
	SectionStatusLoaded SectionStatus = "loaded"
	// SectionStatusErrored は取得失敗。
	SectionStatusErrored SectionStatus = "errored"
)

// SectionState は1セクションの状態とエラーを保持する。
type SectionState struct {
	Status SectionStatus
	Err    *FetchError
}

// Phase は詳細セッション全体の状態を表す。
type Phase string

const (
	// PhaseLoading はどのセクションも未解決の状態。
	PhaseLoading Phase = "loading"
	// PhasePartiallyLoaded は一部のセクションのみ解決した状態。
	PhasePartiallyLoaded Phase = "partially_loaded"
	// PhaseComplete は全セクションがエラーなく解決した状態。
	PhaseComplete Phase = "complete"
	// PhaseErrored はいずれかのセクションがエラーの状態。終端ではない。
	PhaseErrored Phase = "errored"
)

// SectionResult はセクション1件分の取得結果。
// Errがnilでない場合、データフィールドは無視される。
type SectionResult struct {
	Section Section
	Species []Species
	Films   []Film
	Planet  *Planet
	Err     error
}

// DetailViewState は種族・映画・惑星の取得結果を集約した詳細画面の状態。
// 永続化はされず、セッションごとに作り直される。
// メソッドはすべて値を受け取り新しい値を返すため、発行済みの状態は変更されない。
type DetailViewState struct {
	Phase Phase

	// nilは未解決、空スライスは解決済みで0件を表す
	Species []Species
	Films   []Film
	Planet  *Planet

	SpeciesSection SectionState
	FilmsSection   SectionState
	PlanetSection  SectionState

	// Error は直近に捕捉されたエラー。エラー中のセクションがなければnil。
	Error      error
	IsComplete bool
}

// NewLoadingDetailState は全セクションが取得中の初期状態を返す。
func NewLoadingDetailState() DetailViewState {
	return DetailViewState{
		Phase:          PhaseLoading,
		SpeciesSection: SectionState{Status: SectionStatusLoading},
		FilmsSection:   SectionState{Status: SectionStatusLoading},
		PlanetSection:  SectionState{Status: SectionStatusLoading},
	}
}

// NewFavoriteDetailState は保存済みお気に入りから完了状態を組み立てる。
func NewFavoriteDetailState(f *Favorite) DetailViewState {
	planet := f.Planet
	films := cloneFilms(f.Films)
	if films == nil {
		films = []Film{}
	}
	s := DetailViewState{
		Species:        []Species{f.Species},
		Films:          films,
		Planet:         &planet,
		SpeciesSection: SectionState{Status: SectionStatusLoaded},
		FilmsSection:   SectionState{Status: SectionStatusLoaded},
		PlanetSection:  SectionState{Status: SectionStatusLoaded},
	}
	return s.recompute()
}

// NewInputMissingDetailState は入力がないセッションの終端エラー状態を返す。
func NewInputMissingDetailState() DetailViewState {
	s := NewLoadingDetailState()
	s.Phase = PhaseErrored
	s.Error = ErrInputMissing
	return s
}

// Section は指定セクションの状態を返す。
func (s DetailViewState) Section(sec Section) SectionState {
	switch sec {
	case SectionSpecies:
		return s.SpeciesSection
	case SectionFilms:
		return s.FilmsSection
	case SectionPlanet:
		return s.PlanetSection
	default:
		return SectionState{}
	}
}

func (s *DetailViewState) setSection(sec Section, st SectionState) {
	switch sec {
	case SectionSpecies:
		s.SpeciesSection = st
	case SectionFilms:
		s.FilmsSection = st
	case SectionPlanet:
		s.PlanetSection = st
	}
}

// Resolved はエラーなく解決済みのセクション数（0〜3）を返す。
func (s DetailViewState) Resolved() int {
	n := 0
	for _, sec := range AllSections() {
		if s.Section(sec).Status == SectionStatusLoaded {
			n++
		}
	}
	return n
}

// ErroredSections はエラー中のセクションを固定順で返す。
func (s DetailViewState) ErroredSections() []Section {
	var out []Section
	for _, sec := range AllSections() {
		if s.Section(sec).Status == SectionStatusErrored {
			out = append(out, sec)
		}
	}
	return out
}

// Apply はセクションの取得結果を反映した新しい状態を返す。
// 失敗は該当セクションのみに記録され、他のセクションには影響しない。
func (s DetailViewState) Apply(r SectionResult) DetailViewState {
	next := s.clone()
	if next.Error == ErrInputMissing {
		return next
	}

	if r.Err != nil {
		fetchErr := &FetchError{Section: r.Section, Err: r.Err}
		next.setSection(r.Section, SectionState{Status: SectionStatusErrored, Err: fetchErr})
		next.Error = fetchErr
		return next.recompute()
	}

	switch r.Section {
	case SectionSpecies:
		next.Species = cloneSpecies(r.Species)
		if next.Species == nil {
			next.Species = []Species{}
		}
	case SectionFilms:
		next.Films = cloneFilms(r.Films)
		if next.Films == nil {
			next.Films = []Film{}
		}
	case SectionPlanet:
		if r.Planet != nil {
			p := *r.Planet
			next.Planet = &p
		} else {
			next.Planet = &Planet{}
		}
	default:
		return next
	}
	next.setSection(r.Section, SectionState{Status: SectionStatusLoaded})
	return next.recompute()
}

// BeginRetry は指定セクションのうちエラー中のものを取得中へ戻した新しい状態を返す。
// エラーでないセクションは変更しない。
func (s DetailViewState) BeginRetry(sections []Section) DetailViewState {
	next := s.clone()
	for _, sec := range sections {
		if next.Section(sec).Status == SectionStatusErrored {
			next.setSection(sec, SectionState{Status: SectionStatusLoading})
		}
	}
	return next.recompute()
}

// recompute はセクション状態からPhase・Error・IsCompleteを導出する。
func (s DetailViewState) recompute() DetailViewState {
	errored := s.ErroredSections()

	if len(errored) == 0 {
		s.Error = nil
	} else if fe, ok := s.Error.(*FetchError); !ok || s.Section(fe.Section).Status != SectionStatusErrored {
		// 直近のエラーが解消済みなら残っているエラーを代表にする
		s.Error = s.Section(errored[0]).Err
	}

	resolved := s.Resolved()
	switch {
	case len(errored) > 0:
		s.Phase = PhaseErrored
	case resolved == len(AllSections()):
		s.Phase = PhaseComplete
	case resolved > 0:
		s.Phase = PhasePartiallyLoaded
	default:
		s.Phase = PhaseLoading
	}
	s.IsComplete = s.Phase == PhaseComplete
	return s
}

func (s DetailViewState) clone() DetailViewState {
	out := s
	out.Species = cloneSpecies(s.Species)
	out.Films = cloneFilms(s.Films)
	if s.Planet != nil {
		p := *s.Planet
		out.Planet = &p
	}
	return out
}

func cloneSpecies(in []Species) []Species {
	if in == nil {
		return nil
	}
	out := make([]Species, len(in))
	copy(out, in)
	return out
}

func cloneFilms(in []Film) []Film {
	if in == nil {
		return nil
	}
	out := make([]Film, len(in))
	copy(out, in)
	return out
}

// FavoriteViewState はお気に入りトグルの表示状態。
// Errorはローカルストアの障害のみを表し、未登録はエラーではない。
type FavoriteViewState struct {
	IsFavorite bool
	Error      error
}
