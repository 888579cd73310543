package detail

import "github.com/hitoshi/theforce/internal/model"

// BuildFavorite は読み込み完了した詳細状態からお気に入りスナップショットを組み立てる。
// 空の文字列は "Unknown"、惑星がなければ "Unknown"/人口0、種族は先頭の1件のみを使う。
func BuildFavorite(ch model.Character, st model.DetailViewState) *model.Favorite {
	fav := &model.Favorite{
		Character: model.Character{
			Name:         ch.Name,
			BirthYear:    orUnknown(ch.BirthYear),
			HeightCm:     orUnknown(ch.HeightCm),
			HeightInches: orUnknown(ch.HeightInches),
			URL:          ch.URL,
		},
		Species: model.Species{Name: model.UnknownValue, Language: model.UnknownValue},
		Planet:  model.Planet{Name: model.UnknownValue},
		Films:   make([]model.Film, 0, len(st.Films)),
	}

	if len(st.Species) > 0 {
		fav.Species = model.Species{
			Name:     orUnknown(st.Species[0].Name),
			Language: orUnknown(st.Species[0].Language),
		}
	}
	if st.Planet != nil {
		fav.Planet = model.Planet{
			Name:       orUnknown(st.Planet.Name),
			Population: st.Planet.Population,
		}
	}
	fav.Films = append(fav.Films, st.Films...)

	return fav
}

func orUnknown(s string) string {
	if s == "" {
		return model.UnknownValue
	}
	return s
}
