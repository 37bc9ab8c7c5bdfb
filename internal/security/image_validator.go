package security

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/hitoshi/platfeed/internal/model"
)

const (
	dataURLPrefix = "data:image/"
	base64Marker  = ";base64"
	sniffLen      = 512
)

// isoImageBrands はhttp.DetectContentTypeが判定しないISO BMFF系の画像形式について、
// 宣言されたサブタイプごとに受け付けるftypボックスのブランドを定める。
var isoImageBrands = map[string][]string{
	"avif": {"avif", "avis"},
	"heic": {"heic", "heix", "heim", "heis", "hevc", "hevx"},
	"heif": {"mif1", "msf1", "heic", "heix"},
}

// ImageValidator はbase64エンコードされたdata URL形式の添付画像を検証する。
type ImageValidator struct {
	maxSize int
}

// NewImageValidator はImageValidatorを生成する。maxSizeはdata URL全体の最大バイト数。
func NewImageValidator(maxSize int) *ImageValidator {
	return &ImageValidator{maxSize: maxSize}
}

// Validate はdata URLが以下を満たすかを検証し、満たさない場合はINVALID_IMAGEエラーを返す。
//   - data URL全体がmaxSizeバイト以下
//   - "data:image/<subtype>;base64," で始まる
//   - ペイロードが正しいbase64である
//   - デコード結果の先頭が画像として判定される
//     (AVIF/HEIC/HEIFは宣言されたサブタイプに合うftypブランドを持つ)
//
// SVGはスクリプトを含み得るため受け付けない。
func (v *ImageValidator) Validate(dataURL string) error {
	if v.maxSize > 0 && len(dataURL) > v.maxSize {
		return model.NewInvalidImageError("画像サイズが上限を超えています")
	}

	header, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(header, dataURLPrefix) || !strings.HasSuffix(header, base64Marker) {
		return model.NewInvalidImageError("data:image/...;base64, 形式ではありません")
	}
	if payload == "" {
		return model.NewInvalidImageError("画像データが空です")
	}

	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(payload))

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(dec, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return model.NewInvalidImageError("base64として解釈できません")
	}
	if n == 0 {
		return model.NewInvalidImageError("画像データが空です")
	}

	subtype := strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(header, dataURLPrefix), base64Marker))
	if !strings.HasPrefix(http.DetectContentType(head[:n]), "image/") && !hasISOImageBrand(head[:n], subtype) {
		return model.NewInvalidImageError("画像データではありません")
	}

	// 残りのペイロードもbase64として正しいことを確認する
	if _, err := io.Copy(io.Discard, dec); err != nil {
		return model.NewInvalidImageError("base64として解釈できません")
	}

	return nil
}

// hasISOImageBrand は先頭のftypボックスがサブタイプに対応するブランドを含むか判定する。
func hasISOImageBrand(head []byte, subtype string) bool {
	brands, ok := isoImageBrands[subtype]
	if !ok || len(head) < 16 || string(head[4:8]) != "ftyp" {
		return false
	}
	boxSize := int(binary.BigEndian.Uint32(head[:4]))
	if boxSize < 16 {
		return false
	}
	end := min(boxSize, len(head))

	// メジャーブランドの後にマイナーバージョン、互換ブランドが続く
	if slices.Contains(brands, string(head[8:12])) {
		return true
	}
	for i := 16; i+4 <= end; i += 4 {
		if slices.Contains(brands, string(head[i:i+4])) {
			return true
		}
	}
	return false
}
