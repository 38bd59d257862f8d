package service

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"math"
	"math/rand"
	"sort"
	"strconv"
)

// borderColor - акцентный цвет рамки (золотой, как и в исходном продукте).
var borderColor = mustHexColor("#FFD700")

const (
	defaultCanvasWidth  = 800
	defaultCanvasHeight = 600
	particleCount       = 20
	borderWidth         = 3
)

// ProceduralRenderer - терминальная стадия графического каскада:
// детерминированный синтез изображения без внешних вызовов. Не имеет
// пути отказа на валидных входах; внутренняя ошибка рисования - дефект
// программы и паникует, а не деградирует молча.
type ProceduralRenderer struct {
	width  int
	height int
}

// NewProceduralRenderer создает рендерер с фиксированным размером холста.
func NewProceduralRenderer(width, height int) *ProceduralRenderer {
	if width <= 0 {
		width = defaultCanvasWidth
	}
	if height <= 0 {
		height = defaultCanvasHeight
	}
	return &ProceduralRenderer{width: width, height: height}
}

// Render синтезирует изображение сцены и возвращает его как
// data:image/png;base64 строку. Для одинаковых (анализ, sceneID)
// результат побайтово воспроизводим.
func (r *ProceduralRenderer) Render(a SceneAnalysis, sceneID int) string {
	comp := buildComposition(a, sceneID, r.width, r.height)
	img := comp.rasterize()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		// Кодирование готового растра фиксированного размера отказать не может
		panic(fmt.Sprintf("png encode failed: %v", err))
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// sceneSeed выводит seed генератора частиц из id сцены: один и тот же id
// дает одинаковую раскладку, разные сцены одной истории различаются.
func sceneSeed(sceneID int) int64 {
	h := fnv.New64a()
	h.Write([]byte(strconv.Itoa(sceneID)))
	return int64(h.Sum64())
}

// motifIndex - детерминированный индекс мотива для выбора пары цветов фона.
func motifIndex(m Motif) int {
	switch m {
	case MotifNest:
		return 0
	case MotifCastle:
		return 1
	case MotifTree:
		return 2
	case MotifSky:
		return 3
	case MotifWave:
		return 4
	default:
		return 5
	}
}

// shape - одна нарисованная фигура композиции. Категория (kind) нужна
// тестам и отладке, рисование инкапсулировано в замыкании.
type shape struct {
	kind string
	draw func(c *canvas)
}

// composition - декларативное описание кадра до растеризации.
type composition struct {
	width, height        int
	gradTop, gradBottom  color.NRGBA
	diagonal             bool
	shapes               []shape
	border               color.NRGBA
}

// buildComposition собирает фигуры кадра: градиент по мотиву, набор
// мотив-специфичных фигур, посеянные частицы и рамку. Полностью
// детерминирована относительно (a, sceneID, размер холста).
func buildComposition(a SceneAnalysis, sceneID, w, h int) composition {
	rng := rand.New(rand.NewSource(sceneSeed(sceneID)))
	idx := motifIndex(a.Motif)
	colors := a.Palette.Colors

	comp := composition{
		width:      w,
		height:     h,
		gradTop:    colors[idx%len(colors)],
		gradBottom: colors[(idx+2)%len(colors)],
		diagonal:   idx%2 == 1,
		border:     borderColor,
	}

	switch a.Motif {
	case MotifNest:
		comp.shapes = append(comp.shapes, nestShapes(colors, w, h)...)
	case MotifCastle:
		comp.shapes = append(comp.shapes, castleShapes(colors, w, h)...)
	case MotifTree:
		comp.shapes = append(comp.shapes, treeShapes(colors, w, h)...)
	case MotifSky:
		comp.shapes = append(comp.shapes, skyShapes(colors, w, h, rng)...)
	case MotifWave:
		comp.shapes = append(comp.shapes, waveShapes(colors, w, h)...)
	default:
		comp.shapes = append(comp.shapes, genericShapes(colors, w, h)...)
	}

	comp.shapes = append(comp.shapes, particleShapes(colors, w, h, rng)...)
	return comp
}

// rasterize отрисовывает композицию на холсте.
func (comp composition) rasterize() *image.NRGBA {
	c := newCanvas(comp.width, comp.height)
	c.gradient(comp.gradTop, comp.gradBottom, comp.diagonal)
	for _, s := range comp.shapes {
		s.draw(c)
	}
	c.frame(comp.border, borderWidth)
	return c.img
}

// --- Наборы фигур по мотивам ---

func nestShapes(colors [5]color.NRGBA, w, h int) []shape {
	var shapes []shape
	cx, cy := w/2, h/2+50

	// Гнездо: концентрические кольца
	for i := 0; i < 5; i++ {
		radius := 80 + i*5
		r := radius
		shapes = append(shapes, shape{kind: "nest", draw: func(c *canvas) {
			c.strokeEllipse(cx, cy, r, r/2, colors[3], 2)
		}})
	}

	// Силуэт кролика: тело, голова, уши
	rx, ry := w/2, h/2
	shapes = append(shapes, shape{kind: "rabbit", draw: func(c *canvas) {
		c.fillEllipse(rx, ry+10, 30, 30, colors[4])
		c.fillEllipse(rx, ry-20, 20, 20, colors[4])
		c.fillEllipse(rx-10, ry-45, 5, 15, colors[4])
		c.fillEllipse(rx+10, ry-45, 5, 15, colors[4])
	}})

	// Цветы вокруг гнезда
	for i := 0; i < 8; i++ {
		angle := float64(i) * math.Pi / 4
		fx := cx + int(110*math.Cos(angle))
		fy := cy + int(70*math.Sin(angle))
		col := colors[i%len(colors)]
		shapes = append(shapes, shape{kind: "flower", draw: func(c *canvas) {
			for p := 0; p < 6; p++ {
				pa := float64(p) * math.Pi / 3
				px := fx + int(8*math.Cos(pa))
				py := fy + int(8*math.Sin(pa))
				c.fillEllipse(px, py, 3, 3, col)
			}
			c.fillEllipse(fx, fy, 2, 2, borderColor)
		}})
	}

	return shapes
}

func castleShapes(colors [5]color.NRGBA, w, h int) []shape {
	var shapes []shape
	cx, cy := w/2, h/2

	shapes = append(shapes, shape{kind: "castle", draw: func(c *canvas) {
		c.fillRect(cx-60, cy+20, cx+60, cy+80, colors[2])
		c.fillRect(cx-50, cy-40, cx-30, cy+20, colors[2])
		c.fillRect(cx+30, cy-40, cx+50, cy+20, colors[2])
	}})

	shapes = append(shapes, shape{kind: "flag", draw: func(c *canvas) {
		c.fillPolygon([]image.Point{{cx - 40, cy - 40}, {cx - 40, cy - 60}, {cx - 20, cy - 50}}, colors[0])
	}})
	shapes = append(shapes, shape{kind: "flag", draw: func(c *canvas) {
		c.fillPolygon([]image.Point{{cx + 40, cy - 40}, {cx + 40, cy - 60}, {cx + 20, cy - 50}}, colors[0])
	}})

	kx, ky := cx-100, cy+40
	shapes = append(shapes, shape{kind: "knight", draw: func(c *canvas) {
		c.fillRect(kx-15, ky-30, kx+15, ky+20, colors[1])
		c.fillEllipse(kx, ky-40, 10, 10, colors[4])
		c.line(kx+20, ky-10, kx+40, ky-30, colors[3], 3)
	}})

	return shapes
}

func treeShapes(colors [5]color.NRGBA, w, h int) []shape {
	var shapes []shape
	step := w / 6

	for i := 0; i < 5; i++ {
		tx := step + i*step
		ty := h/2 + 50
		small := i%2 == 0
		shapes = append(shapes, shape{kind: "tree", draw: func(c *canvas) {
			c.fillRect(tx-10, ty, tx+10, ty+80, colors[3])
			c.fillEllipse(tx, ty-10, 30, 30, colors[1])
			if small {
				sx, sy := tx+40, ty+20
				c.fillRect(sx-5, sy, sx+5, sy+40, colors[3])
				c.fillEllipse(sx, sy-5, 15, 15, colors[2])
			}
		}})
	}

	shapes = append(shapes, shape{kind: "grass", draw: func(c *canvas) {
		for x := 0; x < w; x += 20 {
			c.line(x, h-50, x+10, h-30, colors[1], 2)
		}
	}})

	return shapes
}

func skyShapes(colors [5]color.NRGBA, w, h int, rng *rand.Rand) []shape {
	var shapes []shape

	mx, my := w-150, 100
	shapes = append(shapes, shape{kind: "moon", draw: func(c *canvas) {
		c.fillEllipse(mx, my, 40, 40, colors[4])
	}})

	for i := 0; i < 30; i++ {
		sx := 50 + rng.Intn(w-100)
		sy := 50 + rng.Intn(h/2-50)
		size := 1 + rng.Intn(3)
		shapes = append(shapes, shape{kind: "star", draw: func(c *canvas) {
			c.fillEllipse(sx, sy, size, size, colors[4])
		}})
	}

	cloudPositions := [][2]int{{100, 80}, {300, 120}, {500, 90}}
	for _, pos := range cloudPositions {
		clx, cly := pos[0], pos[1]
		shapes = append(shapes, shape{kind: "cloud", draw: func(c *canvas) {
			c.fillEllipse(clx, cly, 30, 15, colors[2])
			c.fillEllipse(clx-10, cly-5, 20, 15, colors[2])
			c.fillEllipse(clx+10, cly-8, 15, 12, colors[2])
		}})
	}

	return shapes
}

func waveShapes(colors [5]color.NRGBA, w, h int) []shape {
	var shapes []shape

	for y := h / 2; y < h; y += 20 {
		wy := y
		shapes = append(shapes, shape{kind: "wave", draw: func(c *canvas) {
			for x := 0; x < w; x += 40 {
				c.line(x, wy, x+20, wy-10, colors[2], 3)
				c.line(x+20, wy-10, x+40, wy, colors[2], 3)
			}
		}})
	}

	sx, sy := w-100, 100
	shapes = append(shapes, shape{kind: "sun", draw: func(c *canvas) {
		c.fillEllipse(sx, sy, 30, 30, colors[4])
	}})

	fishPositions := [][2]int{{200, h/2 + 50}, {400, h/2 + 30}, {600, h/2 + 70}}
	for _, pos := range fishPositions {
		fx, fy := pos[0], pos[1]
		shapes = append(shapes, shape{kind: "fish", draw: func(c *canvas) {
			c.fillEllipse(fx, fy, 15, 8, colors[0])
			c.fillPolygon([]image.Point{{fx - 15, fy}, {fx - 25, fy - 10}, {fx - 25, fy + 10}}, colors[0])
		}})
	}

	return shapes
}

func genericShapes(colors [5]color.NRGBA, w, h int) []shape {
	var shapes []shape
	cx, cy := w/2, h/2

	for i := 0; i < 3; i++ {
		radius := 60 + i*20
		col := colors[i%len(colors)]
		r := radius
		shapes = append(shapes, shape{kind: "ring", draw: func(c *canvas) {
			c.strokeEllipse(cx, cy, r, r, col, 3)
		}})
	}

	for i := 0; i < 6; i++ {
		angle := float64(i) * math.Pi / 3
		ex := cx + int(120*math.Cos(angle))
		ey := cy + int(120*math.Sin(angle))
		size := 10 + (i%3)*5
		col := colors[i%len(colors)]
		shapes = append(shapes, shape{kind: "orbit", draw: func(c *canvas) {
			c.fillEllipse(ex, ey, size, size, col)
		}})
	}

	return shapes
}

// particleShapes - фиксированное число звездообразных частиц, позиции
// которых задает посеянная последовательность.
func particleShapes(colors [5]color.NRGBA, w, h int, rng *rand.Rand) []shape {
	var shapes []shape
	for i := 0; i < particleCount; i++ {
		x := 50 + rng.Intn(w-100)
		y := 50 + rng.Intn(h-100)
		size := 2 + rng.Intn(5)
		col := colors[rng.Intn(len(colors))]
		shapes = append(shapes, shape{kind: "particle", draw: func(c *canvas) {
			pts := []image.Point{
				{x, y - size}, {x + size/2, y - size/2}, {x + size, y},
				{x + size/2, y + size/2}, {x, y + size}, {x - size/2, y + size/2},
				{x - size, y}, {x - size/2, y - size/2},
			}
			c.fillPolygon(pts, col)
		}})
	}
	return shapes
}

// --- Холст и примитивы рисования ---

type canvas struct {
	img *image.NRGBA
	w   int
	h   int
}

func newCanvas(w, h int) *canvas {
	return &canvas{img: image.NewNRGBA(image.Rect(0, 0, w, h)), w: w, h: h}
}

func (c *canvas) set(x, y int, col color.NRGBA) {
	if x < 0 || y < 0 || x >= c.w || y >= c.h {
		return
	}
	c.img.SetNRGBA(x, y, col)
}

// gradient заливает фон линейным градиентом: вертикальным либо диагональным.
func (c *canvas) gradient(top, bottom color.NRGBA, diagonal bool) {
	for y := 0; y < c.h; y++ {
		for x := 0; x < c.w; x++ {
			var t float64
			if diagonal {
				t = float64(x+y) / float64(c.w+c.h-2)
			} else {
				t = float64(y) / float64(c.h-1)
			}
			c.set(x, y, lerpColor(top, bottom, t))
		}
	}
}

func lerpColor(a, b color.NRGBA, t float64) color.NRGBA {
	return color.NRGBA{
		R: uint8(float64(a.R) + (float64(b.R)-float64(a.R))*t),
		G: uint8(float64(a.G) + (float64(b.G)-float64(a.G))*t),
		B: uint8(float64(a.B) + (float64(b.B)-float64(a.B))*t),
		A: 0xFF,
	}
}

func (c *canvas) fillRect(x0, y0, x1, y1 int, col color.NRGBA) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			c.set(x, y, col)
		}
	}
}

func (c *canvas) fillEllipse(cx, cy, rx, ry int, col color.NRGBA) {
	if rx <= 0 || ry <= 0 {
		return
	}
	for y := -ry; y <= ry; y++ {
		for x := -rx; x <= rx; x++ {
			dx := float64(x) / float64(rx)
			dy := float64(y) / float64(ry)
			if dx*dx+dy*dy <= 1.0 {
				c.set(cx+x, cy+y, col)
			}
		}
	}
}

// strokeEllipse рисует контур эллипса параметрическим обходом.
func (c *canvas) strokeEllipse(cx, cy, rx, ry int, col color.NRGBA, width int) {
	steps := 4 * (rx + ry)
	if steps < 32 {
		steps = 32
	}
	for i := 0; i < steps; i++ {
		angle := 2 * math.Pi * float64(i) / float64(steps)
		x := cx + int(float64(rx)*math.Cos(angle))
		y := cy + int(float64(ry)*math.Sin(angle))
		for dx := 0; dx < width; dx++ {
			for dy := 0; dy < width; dy++ {
				c.set(x+dx, y+dy, col)
			}
		}
	}
}

// line рисует отрезок алгоритмом Брезенхема с заданной толщиной.
func (c *canvas) line(x0, y0, x1, y1 int, col color.NRGBA, width int) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	x, y := x0, y0
	for {
		for ox := 0; ox < width; ox++ {
			for oy := 0; oy < width; oy++ {
				c.set(x+ox, y+oy, col)
			}
		}
		if x == x1 && y == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// fillPolygon заливает многоугольник сканлайнами (правило четности).
func (c *canvas) fillPolygon(pts []image.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}

	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}

	for y := minY; y <= maxY; y++ {
		var xs []int
		j := len(pts) - 1
		for i := 0; i < len(pts); i++ {
			a, b := pts[i], pts[j]
			if (a.Y <= y && b.Y > y) || (b.Y <= y && a.Y > y) {
				x := a.X + (y-a.Y)*(b.X-a.X)/(b.Y-a.Y)
				xs = append(xs, x)
			}
			j = i
		}
		sort.Ints(xs)
		for k := 0; k+1 < len(xs); k += 2 {
			for x := xs[k]; x <= xs[k+1]; x++ {
				c.set(x, y, col)
			}
		}
	}
}

// frame рисует рамку по периметру холста.
func (c *canvas) frame(col color.NRGBA, width int) {
	c.fillRect(0, 0, c.w-1, width-1, col)
	c.fillRect(0, c.h-width, c.w-1, c.h-1, col)
	c.fillRect(0, 0, width-1, c.h-1, col)
	c.fillRect(c.w-width, 0, c.w-1, c.h-1, col)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
