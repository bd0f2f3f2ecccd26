// Package preview renders the current board to a PNG image.
package preview

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/scuffed-chess-client/internal/domain"
)

var ErrNoBoard = errors.New("no board to render")

// Options tune one render.
type Options struct {
	// Flip draws the board from Black's side.
	Flip   bool
	Header string
}

type Renderer struct {
	squareSize int
	margin     int
	headerH    int
}

func NewRenderer(squareSize int) *Renderer {
	if squareSize < 16 {
		squareSize = 64
	}
	return &Renderer{squareSize: squareSize, margin: 24, headerH: 28}
}

var (
	background  = color.RGBA{48, 46, 43, 255}
	lightSquare = color.RGBA{233, 207, 163, 255}
	darkSquare  = color.RGBA{187, 136, 96, 255}
	coordColor  = color.RGBA{200, 200, 200, 255}
	headerColor = color.RGBA{245, 245, 245, 255}
)

func (r *Renderer) RenderPNG(ctx context.Context, snap *domain.Snapshot, opts Options) ([]byte, error) {
	if snap == nil {
		return nil, ErrNoBoard
	}
	boardPx := r.squareSize * domain.BoardSize
	origin := image.Pt(r.margin, r.margin+r.headerH)
	img := image.NewRGBA(image.Rect(0, 0, boardPx+2*r.margin, boardPx+2*r.margin+r.headerH))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	r.drawSquares(img, origin, opts.Flip)
	if err := r.drawPieces(ctx, img, &snap.Board, origin, opts.Flip); err != nil {
		return nil, err
	}
	r.drawCoordinates(img, origin, opts.Flip)
	r.drawHeader(img, headerText(snap, opts.Header))

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// cell maps a board coordinate to its column and row on the image.
func cell(file, rank int, flip bool) (col, row int) {
	if flip {
		return domain.BoardSize - 1 - file, domain.BoardSize - 1 - rank
	}
	return file, rank
}

func (r *Renderer) squareRect(origin image.Point, col, row int) image.Rectangle {
	x := origin.X + col*r.squareSize
	y := origin.Y + row*r.squareSize
	return image.Rect(x, y, x+r.squareSize, y+r.squareSize)
}

func squareColor(file, rank int) color.Color {
	if (file+rank)%2 == 0 {
		return lightSquare
	}
	return darkSquare
}

func (r *Renderer) drawSquares(dst draw.Image, origin image.Point, flip bool) {
	for file := 0; file < domain.BoardSize; file++ {
		for rank := 0; rank < domain.BoardSize; rank++ {
			col, row := cell(file, rank, flip)
			draw.Draw(dst, r.squareRect(origin, col, row), image.NewUniform(squareColor(file, rank)), image.Point{}, draw.Src)
		}
	}
}

func (r *Renderer) drawPieces(ctx context.Context, dst draw.Image, b *domain.Board, origin image.Point, flip bool) error {
	for file := 0; file < domain.BoardSize; file++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for rank := 0; rank < domain.BoardSize; rank++ {
			sq := b[file][rank]
			if !sq.ContainsPiece || sq.Piece == nil {
				continue
			}
			pimg, err := renderPiece(*sq.Piece, r.squareSize)
			if err != nil {
				return err
			}
			col, row := cell(file, rank, flip)
			draw.Draw(dst, r.squareRect(origin, col, row), pimg, image.Point{}, draw.Over)
		}
	}
	return nil
}

func (r *Renderer) drawCoordinates(dst draw.Image, origin image.Point, flip bool) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(coordColor), Face: face}
	boardEnd := origin.Y + domain.BoardSize*r.squareSize

	for i := 0; i < domain.BoardSize; i++ {
		col, row := cell(i, i, flip)
		// files along the bottom, rank numbers down the left edge
		fileLabel := string(rune('a' + i))
		rankLabel := string(rune('8' - i))
		drawCentered(d, fileLabel, origin.X+col*r.squareSize+r.squareSize/2, boardEnd+face.Ascent+4)
		drawCentered(d, rankLabel, origin.X/2, origin.Y+row*r.squareSize+r.squareSize/2+face.Ascent/2)
	}
}

func (r *Renderer) drawHeader(dst draw.Image, text string) {
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(headerColor), Face: face}
	width := dst.Bounds().Dx()
	drawCentered(d, text, width/2, r.margin/2+r.headerH/2+face.Ascent/2)
}

func drawCentered(d *font.Drawer, text string, centerX, baseline int) {
	w := d.MeasureString(text).Ceil()
	d.Dot = fixed.P(centerX-w/2, baseline)
	d.DrawString(text)
}

func headerText(snap *domain.Snapshot, header string) string {
	parts := make([]string, 0, 3)
	if h := strings.TrimSpace(header); h != "" {
		parts = append(parts, h)
	}
	if snap.Ended {
		parts = append(parts, "game over: "+string(snap.EndState))
	} else {
		parts = append(parts, snap.Turn.String()+" to move")
	}
	parts = append(parts, fmt.Sprintf("move %d", snap.FullmoveNumber))
	return strings.Join(parts, " | ")
}
