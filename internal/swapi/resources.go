package swapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/theforce/internal/model"
)

// personResponse は /people/{id}/ のレスポンス。
type personResponse struct {
	Name      string   `json:"name"`
	BirthYear string   `json:"birth_year"`
	Height    string   `json:"height"`
	Homeworld string   `json:"homeworld"`
	Films     []string `json:"films"`
	Species   []string `json:"species"`
	URL       string   `json:"url"`
}

// speciesResponse は /species/{id}/ のレスポンス。
type speciesResponse struct {
	Name     string `json:"name"`
	Language string `json:"language"`
}

// filmResponse は /films/{id}/ のレスポンス。
type filmResponse struct {
	Title        string `json:"title"`
	OpeningCrawl string `json:"opening_crawl"`
}

// planetResponse は /planets/{id}/ のレスポンス。
// populationは数値文字列または "unknown"。
type planetResponse struct {
	Name       string `json:"name"`
	Population string `json:"population"`
}

// pageResponse は一覧系エンドポイントの共通ページ形式。
type pageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (p *pageResponse[T]) hasNext() bool {
	return p.Next != nil && *p.Next != ""
}

func (c *Client) toCharacter(p personResponse) model.Character {
	cm, inches := heights(p.Height)
	return model.Character{
		Name:         c.sanitizer.SanitizeText(p.Name),
		BirthYear:    c.sanitizer.SanitizeText(p.BirthYear),
		HeightCm:     cm,
		HeightInches: inches,
		URL:          p.URL,
	}
}

func (c *Client) toSpecies(s speciesResponse) model.Species {
	return model.Species{
		Name:     c.sanitizer.SanitizeText(s.Name),
		Language: c.sanitizer.SanitizeText(s.Language),
	}
}

func (c *Client) toFilm(f filmResponse) model.Film {
	return model.Film{
		Title:        c.sanitizer.SanitizeText(f.Title),
		OpeningCrawl: c.sanitizer.SanitizeText(f.OpeningCrawl),
	}
}

func (c *Client) toPlanet(p planetResponse) model.Planet {
	return model.Planet{
		Name:       c.sanitizer.SanitizeText(p.Name),
		Population: parsePopulation(p.Population),
	}
}

// heights はcm表記の身長文字列からcmとインチの表示値を返す。
// 数値でない場合（"unknown"等）はどちらもUnknownValueとする。
func heights(raw string) (string, string) {
	raw = strings.TrimSpace(raw)
	cm, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil || cm <= 0 {
		return model.UnknownValue, model.UnknownValue
	}
	return raw, fmt.Sprintf("%.1f", cm/2.54)
}

// parsePopulation は人口文字列を整数に変換する。数値でない場合は0。
func parsePopulation(raw string) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
