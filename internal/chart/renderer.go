// Package chart renders a backtest run to a PNG report with an equity panel
// and a drawdown panel.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"

	"backtestgpt/internal/domain"
)

const (
	defaultChartWidth  = 900
	defaultChartHeight = 480
	maxChartPoints     = 500
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colEquity     = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colClose      = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colDrawdown   = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colEntry      = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colExit       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
)

type Renderer struct {
	width  int
	height int
}

func NewRenderer(width, height int) *Renderer {
	if width <= 0 {
		width = defaultChartWidth
	}
	if height <= 0 {
		height = defaultChartHeight
	}
	return &Renderer{width: width, height: height}
}

// RenderEquityChart draws the equity curve with entry and exit markers on
// the main panel and the drawdown series below it.
func (r *Renderer) RenderEquityChart(result *domain.BacktestResult) ([]byte, error) {
	if result == nil || result.ChartData == nil {
		return nil, fmt.Errorf("no chart data to render")
	}
	cd := result.ChartData
	if len(cd.Equity) < 2 {
		return nil, fmt.Errorf("need at least 2 equity points to render chart")
	}

	equity := cd.Equity
	closes := cd.Close
	drawdown := cd.Drawdown
	entries := cd.Signals["Entries"]
	exits := cd.Signals["Exits"]
	if len(equity) > maxChartPoints {
		offset := len(equity) - maxChartPoints
		equity = equity[offset:]
		closes = tailFloat(closes, maxChartPoints)
		drawdown = tailFloat(drawdown, maxChartPoints)
		entries = tailInt(entries, maxChartPoints)
		exits = tailInt(exits, maxChartPoints)
	}

	img := image.NewRGBA(image.Rect(0, 0, r.width, r.height))
	fillRect(img, img.Bounds(), colBackground)

	mainRect := image.Rect(60, 20, r.width-20, (r.height*68)/100)
	auxRect := image.Rect(60, mainRect.Max.Y+16, r.width-20, r.height-30)
	drawGrid(img, mainRect, 8, 6)
	drawGrid(img, auxRect, 8, 3)

	minE, maxE := finiteBounds(equity)
	for i := range equity {
		if i < len(entries) && entries[i] != 0 {
			x := mapIndexToX(i, len(equity), mainRect)
			drawLine(img, x, mainRect.Min.Y, x, mainRect.Max.Y, colEntry)
		}
		if i < len(exits) && exits[i] != 0 {
			x := mapIndexToX(i, len(equity), mainRect)
			drawLine(img, x, mainRect.Min.Y, x, mainRect.Max.Y, colExit)
		}
	}
	if len(closes) == len(equity) {
		minC, maxC := finiteBounds(closes)
		drawSeries(img, mainRect, closes, minC, maxC, colClose)
	}
	drawSeries(img, mainRect, equity, minE, maxE, colEquity)

	if len(drawdown) == len(equity) {
		minD, maxD := finiteBounds(drawdown)
		if maxD < 1 {
			maxD = 1
		}
		drawBars(img, auxRect, drawdown, minD, maxD, colDrawdown)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func tailFloat(values []float64, n int) []float64 {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func tailInt(values []int, n int) []int {
	if len(values) <= n {
		return values
	}
	return values[len(values)-n:]
}

func drawSeries(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	lastX, lastY := -1, -1
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			lastX, lastY = -1, -1
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		if lastX >= 0 {
			drawLine(img, lastX, lastY, x, y, col)
		}
		lastX, lastY = x, y
	}
}

func drawBars(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	barW := max(1, (rect.Dx()-10)/len(series)-1)
	zeroY := mapValueToY(0, minV, maxV, rect)
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		top := min(y, zeroY)
		bottom := max(y, zeroY)
		fillRect(img, image.Rect(x-barW/2, top, x+barW/2+1, bottom+1), col)
	}
}

func drawGrid(img *image.RGBA, rect image.Rectangle, verticalLines, horizontalLines int) {
	for i := 0; i <= verticalLines; i++ {
		x := rect.Min.X + (rect.Dx()*i)/max(1, verticalLines)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colGrid)
	}
	for i := 0; i <= horizontalLines; i++ {
		y := rect.Min.Y + (rect.Dy()*i)/max(1, horizontalLines)
		drawLine(img, rect.Min.X, y, rect.Max.X, y, colGrid)
	}
}

func mapIndexToX(idx, total int, rect image.Rectangle) int {
	if total <= 1 {
		return rect.Min.X
	}
	return rect.Min.X + (idx*(rect.Dx()-1))/(total-1)
}

func mapValueToY(value, minV, maxV float64, rect image.Rectangle) int {
	if maxV <= minV {
		return rect.Max.Y
	}
	ratio := (value - minV) / (maxV - minV)
	ratio = math.Max(0, math.Min(1, ratio))
	return rect.Max.Y - int(ratio*float64(rect.Dy()-1))
}

func finiteBounds(values []float64) (float64, float64) {
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if math.IsInf(minV, 1) || math.IsInf(maxV, -1) {
		return 0, 1
	}
	if minV == maxV {
		return minV, maxV + 1
	}
	return minV, maxV
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	bounds := rect.Intersect(img.Bounds())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
