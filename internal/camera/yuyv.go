package camera

import (
	"fmt"
	"image"
)

// yuyvToYCbCr はYUYV 4:2:2 のバイト列をimage.YCbCrに詰め替える
// 2画素ごとに Y0 Cb Y1 Cr の4バイト
func yuyvToYCbCr(data []byte, width, height int) (*image.YCbCr, error) {
	if width <= 0 || height <= 0 || width%2 != 0 {
		return nil, fmt.Errorf("無効なYUYV解像度: %dx%d", width, height)
	}
	if len(data) < width*height*2 {
		return nil, fmt.Errorf("YUYVフレームが短すぎます: %d < %d", len(data), width*height*2)
	}

	img := image.NewYCbCr(image.Rect(0, 0, width, height), image.YCbCrSubsampleRatio422)
	for y := 0; y < height; y++ {
		row := data[y*width*2 : (y+1)*width*2]
		for x := 0; x < width; x += 2 {
			i := x * 2
			img.Y[y*img.YStride+x] = row[i]
			img.Y[y*img.YStride+x+1] = row[i+2]
			c := y*img.CStride + x/2
			img.Cb[c] = row[i+1]
			img.Cr[c] = row[i+3]
		}
	}
	return img, nil
}
