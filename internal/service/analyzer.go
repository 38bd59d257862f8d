package service

import (
	"image/color"
	"strings"
)

// Motif - тематическая категория сцены, управляющая выбором фигур
// процедурного рендера.
type Motif string

const (
	MotifNest    Motif = "nest"
	MotifCastle  Motif = "castle"
	MotifTree    Motif = "tree"
	MotifSky     Motif = "sky"
	MotifWave    Motif = "wave"
	MotifGeneric Motif = "generic"
)

// Palette - фиксированный упорядоченный набор из 5 цветов жанра.
type Palette struct {
	Name   string
	Colors [5]color.NRGBA
}

// mustHexColor парсит цвет формата #RRGGBB. Таблицы палитр - константы
// процесса, поэтому некорректный литерал - дефект и паникует при старте.
func mustHexColor(s string) color.NRGBA {
	if len(s) != 7 || s[0] != '#' {
		panic("invalid hex color literal: " + s)
	}
	var v uint32
	for _, r := range s[1:] {
		v <<= 4
		switch {
		case r >= '0' && r <= '9':
			v |= uint32(r - '0')
		case r >= 'a' && r <= 'f':
			v |= uint32(r-'a') + 10
		case r >= 'A' && r <= 'F':
			v |= uint32(r-'A') + 10
		default:
			panic("invalid hex color literal: " + s)
		}
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}
}

func newPalette(name string, hex ...string) Palette {
	p := Palette{Name: name}
	for i, h := range hex {
		p.Colors[i] = mustHexColor(h)
	}
	return p
}

// Палитры жанров. Инициализируются один раз при старте процесса и дальше
// только читаются; записи после инициализации нет.
var (
	kidsPalette = newPalette("kids", "#FF6B9D", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7")

	palettes = map[string]Palette{
		"fantasy":   newPalette("fantasy", "#FF6B9D", "#4ECDC4", "#45B7D1", "#96CEB4", "#FFEAA7"),
		"adventure": newPalette("adventure", "#FF8C42", "#FF6B6B", "#4ECDC4", "#45B7D1", "#96CEB4"),
		"mystery":   newPalette("mystery", "#6C5CE7", "#A29BFE", "#FD79A8", "#FDCB6E", "#00B894"),
		"kids":      kidsPalette,
	}
)

// themeMarkers - словарь тематических маркеров в фиксированном порядке
// приоритета: мотивом сцены становится первая группа с совпадением.
var themeMarkers = []struct {
	motif   Motif
	markers []string
}{
	{MotifNest, []string{"rabbit", "bunny", "animal"}},
	{MotifCastle, []string{"knight", "castle", "sword"}},
	{MotifTree, []string{"forest", "tree", "nature"}},
	{MotifSky, []string{"night", "moon", "star"}},
	{MotifWave, []string{"ocean", "sea", "water"}},
}

// SceneAnalysis - результат анализа сцены: ключевые слова, мотив и палитра.
type SceneAnalysis struct {
	Keywords []string
	Motif    Motif
	Palette  Palette
}

// AnalyzeScene извлекает тематические ключевые слова и палитру из
// image-промпта и жанра. Чистая функция: без I/O и побочных эффектов,
// одинаковый вход всегда дает одинаковый результат.
func AnalyzeScene(imagePrompt, genre string) SceneAnalysis {
	prompt := strings.ToLower(imagePrompt)

	motif := MotifGeneric
	var keywords []string
	for _, group := range themeMarkers {
		matched := false
		for _, marker := range group.markers {
			if strings.Contains(prompt, marker) {
				keywords = append(keywords, marker)
				matched = true
			}
		}
		if matched && motif == MotifGeneric {
			motif = group.motif
		}
	}

	palette, ok := palettes[strings.ToLower(genre)]
	if !ok {
		palette = kidsPalette
	}

	return SceneAnalysis{Keywords: keywords, Motif: motif, Palette: palette}
}
