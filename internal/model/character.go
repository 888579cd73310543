// Package model はドメインモデルを定義する。
package model

import "time"

// UnknownValue は取得元が空またはデフォルト値だった文字列フィールドの代替表記。
const UnknownValue = "Unknown"

// Character はSWAPIから取得したキャラクターを表す。
// Nameがお気に入りの自然キーとなる。
type Character struct {
	Name         string
	BirthYear    string
	HeightCm     string
	HeightInches string
	URL          string // 詳細取得に使う参照URL
}

// Species はキャラクターの種族を表す。
type Species struct {
	Name     string
	Language string
}

// Film はキャラクターの出演映画を表す。
type Film struct {
	Title        string
	OpeningCrawl string
}

// Planet はキャラクターの出身惑星を表す。
// Populationはデータがない場合0とする（nullにはしない）。
type Planet struct {
	Name       string
	Population int64
}

// Favorite はキャラクター・種族・惑星・映画一覧を結合したお気に入りスナップショット。
// ローカルに永続化される唯一のエンティティで、Character.Nameをキーとする。
type Favorite struct {
	Character Character
	Species   Species
	Planet    Planet
	Films     []Film
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Name はお気に入りのキー（キャラクター名）を返す。
func (f *Favorite) Name() string {
	return f.Character.Name
}

// CharacterPage はキャラクター検索結果の1ページを表す。
type CharacterPage struct {
	Count      int
	Characters []Character
	HasNext    bool
}

// FilmPage は映画一覧の1ページを表す。
type FilmPage struct {
	Count   int
	Films   []Film
	HasNext bool
}

// SpeciesPage は種族一覧の1ページを表す。
type SpeciesPage struct {
	Count   int
	Species []Species
	HasNext bool
}

// PlanetPage は惑星一覧の1ページを表す。
type PlanetPage struct {
	Count   int
	Planets []Planet
	HasNext bool
}
