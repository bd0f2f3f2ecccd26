package preview

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/park285/scuffed-chess-client/internal/domain"
)

const discSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 100">` +
	`<circle cx="50" cy="50" r="40" fill="%s" stroke="%s" stroke-width="5"/></svg>`

var (
	whiteDiscFill   = "#f6f3ea"
	whiteDiscStroke = "#3a3a3a"
	blackDiscFill   = "#2b2b2b"
	blackDiscStroke = "#d8d8d8"

	whiteLetter = color.RGBA{40, 40, 40, 255}
	blackLetter = color.RGBA{240, 240, 240, 255}
)

type pieceCacheKey struct {
	piece domain.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

// renderPiece draws a piece as a disc in the side's colours with the class
// letter on top.
func renderPiece(p domain.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: p, size: size}
	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	fill, stroke, letterClr := whiteDiscFill, whiteDiscStroke, whiteLetter
	if p.Color == domain.Black {
		fill, stroke, letterClr = blackDiscFill, blackDiscStroke, blackLetter
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader([]byte(fmt.Sprintf(discSVG, fill, stroke))))
	if err != nil {
		return nil, fmt.Errorf("parse disc svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(size, size, scanner), 1.0)

	glyph := scaledLetter(upper(p.Letter()), letterClr, size*9/20)
	gb := glyph.Bounds()
	at := image.Pt((size-gb.Dx())/2, (size-gb.Dy())/2)
	draw.Draw(img, gb.Add(at), glyph, image.Point{}, draw.Over)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}

// scaledLetter renders one basicfont glyph and scales it to height pixels.
func scaledLetter(letter byte, clr color.Color, height int) image.Image {
	face := basicfont.Face7x13
	w, h := face.Advance, face.Height
	small := image.NewRGBA(image.Rect(0, 0, w, h))
	d := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(clr),
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(string(letter))

	if height < h {
		return small
	}
	out := image.NewRGBA(image.Rect(0, 0, w*height/h, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), small, small.Bounds(), xdraw.Over, nil)
	return out
}

func upper(b byte) byte {
	if b >= 'a' && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
