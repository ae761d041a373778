package slideshow

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"net/http"
	"os"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/sync/errgroup"

	"photoreel/types"
)

// Drawable is a decoded photo ready for compositing, paired with the
// metadata the overlay needs.
type Drawable struct {
	Image    image.Image
	Category types.Category
	Sequence int
}

// LoadPhotos decodes every photo concurrently and returns drawables in
// input order. It acts as a barrier: rendering must not start until every
// load has resolved. Under ImagePolicyAbort a single decode failure fails
// the whole barrier; under ImagePolicySkip bad photos are dropped and the
// survivors keep their relative order.
func LoadPhotos(ctx context.Context, photos []types.Photo, policy ImagePolicy) ([]Drawable, error) {
	results := make([]*Drawable, len(photos))

	g, ctx := errgroup.WithContext(ctx)
	for i, photo := range photos {
		g.Go(func() error {
			img, err := decodePhoto(ctx, photo)
			if err != nil {
				if policy == ImagePolicySkip {
					log.Printf("[Loader] skipping %s: %v", photo.Source(), err)
					return nil
				}
				return fmt.Errorf("%w: %s: %v", ErrLoad, photo.Source(), err)
			}
			results[i] = &Drawable{
				Image:    img,
				Category: photo.Category,
				Sequence: photo.Sequence,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	drawables := make([]Drawable, 0, len(results))
	for _, d := range results {
		if d != nil {
			drawables = append(drawables, *d)
		}
	}
	if len(drawables) == 0 {
		return nil, fmt.Errorf("%w: no photo decoded", ErrLoad)
	}
	return drawables, nil
}

func decodePhoto(ctx context.Context, photo types.Photo) (image.Image, error) {
	data := photo.Data
	if data == nil {
		var err error
		data, err = readRef(ctx, photo.Ref)
		if err != nil {
			return nil, err
		}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func readRef(ctx context.Context, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("photo has neither data nor ref")
	}

	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("failed to download: status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}

	return os.ReadFile(ref)
}
