package imagestore_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/ardanlabs/pixelboard/business/sys/imagestore"
)

// Success and failure markers.
const (
	success = "\u2713"
	failed  = "\u2717"
)

func pngBytes(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %s", err)
	}
	return buf.Bytes()
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)

	s, err := imagestore.Open(imagestore.Config{Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("opening store: %s", err)
	}
	defer s.Close()

	t.Log("Given the need to host the images of cells.")
	{
		t.Logf("\tTest 0:\tWhen uploading a png.")
		{
			data := pngBytes(t)

			url, err := s.Upload(ctx, "my cat!.png", data)
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould accept the image : %s", failed, err)
			}
			t.Logf("\t%s\tTest 0:\tShould accept the image.", success)

			if url != "/images/0905_my_cat_.png" {
				t.Fatalf("\t%s\tTest 0:\tShould get a sanitized url : got %s", failed, url)
			}
			t.Logf("\t%s\tTest 0:\tShould get a sanitized url.", success)

			img, err := s.Get(ctx, "0905_my_cat_.png")
			if err != nil {
				t.Fatalf("\t%s\tTest 0:\tShould be able to read it back : %s", failed, err)
			}
			if img.MIME != "image/png" || !bytes.Equal(img.Data, data) {
				t.Fatalf("\t%s\tTest 0:\tShould read back the same png : %s", failed, img.MIME)
			}
			t.Logf("\t%s\tTest 0:\tShould read back the same png.", success)
		}

		t.Logf("\tTest 1:\tWhen uploading content that is not an image.")
		{
			_, err := s.Upload(ctx, "notes.png", []byte("just some text"))
			if !errors.Is(err, imagestore.ErrUploadRejected) {
				t.Fatalf("\t%s\tTest 1:\tShould reject the upload : %v", failed, err)
			}
			t.Logf("\t%s\tTest 1:\tShould reject the upload.", success)
		}

		t.Logf("\tTest 2:\tWhen uploading more than 5MB.")
		{
			big := append(pngBytes(t), make([]byte, imagestore.MaxSize)...)

			_, err := s.Upload(ctx, "big.png", big)
			if !errors.Is(err, imagestore.ErrUploadRejected) {
				t.Fatalf("\t%s\tTest 2:\tShould reject the upload : %v", failed, err)
			}
			t.Logf("\t%s\tTest 2:\tShould reject the upload.", success)
		}

		t.Logf("\tTest 3:\tWhen reading an unknown image.")
		{
			if _, err := s.Get(ctx, "missing.png"); !errors.Is(err, imagestore.ErrNotFound) {
				t.Fatalf("\t%s\tTest 3:\tShould not find it : %v", failed, err)
			}
			t.Logf("\t%s\tTest 3:\tShould not find it.", success)
		}

		t.Logf("\tTest 4:\tWhen listing and deleting images.")
		{
			images, err := s.List(ctx)
			if err != nil || len(images) != 1 || images[0].Name != "0905_my_cat_.png" || images[0].Data != nil {
				t.Fatalf("\t%s\tTest 4:\tShould list the stored png : %v %+v", failed, err, images)
			}
			t.Logf("\t%s\tTest 4:\tShould list the stored png.", success)

			if err := s.Delete(ctx, "0905_my_cat_.png"); err != nil {
				t.Fatalf("\t%s\tTest 4:\tShould delete the png : %s", failed, err)
			}
			if err := s.Delete(ctx, "0905_my_cat_.png"); !errors.Is(err, imagestore.ErrNotFound) {
				t.Fatalf("\t%s\tTest 4:\tShould not delete it twice : %v", failed, err)
			}
			t.Logf("\t%s\tTest 4:\tShould delete the png once.", success)
		}

		t.Logf("\tTest 5:\tWhen uploading another png with the same name in the same minute.")
		{
			first := pngBytes(t)

			img := image.NewRGBA(image.Rect(0, 0, 2, 2))
			img.Set(1, 1, color.RGBA{B: 255, A: 255})
			var buf bytes.Buffer
			if err := png.Encode(&buf, img); err != nil {
				t.Fatalf("encoding png: %s", err)
			}
			second := buf.Bytes()

			url1, err := s.Upload(ctx, "dog.png", first)
			ifErrFailNow(t, 5, "upload the first png", err)

			url2, err := s.Upload(ctx, "dog.png", second)
			ifErrFailNow(t, 5, "upload the second png", err)

			want := "/images/" + imagestore.HashedName("0905_dog.png", second)
			if url1 != "/images/0905_dog.png" || url2 != want {
				t.Fatalf("\t%s\tTest 5:\tShould store the second png under its own url : got %s %s", failed, url1, url2)
			}
			t.Logf("\t%s\tTest 5:\tShould store the second png under its own url.", success)

			stored, err := s.Get(ctx, "0905_dog.png")
			ifErrFailNow(t, 5, "read back the first png", err)
			if !bytes.Equal(stored.Data, first) {
				t.Fatalf("\t%s\tTest 5:\tShould leave the first png untouched.", failed)
			}
			t.Logf("\t%s\tTest 5:\tShould leave the first png untouched.", success)

			again, err := s.Upload(ctx, "dog.png", first)
			ifErrFailNow(t, 5, "upload the first png again", err)
			if again != url1 {
				t.Fatalf("\t%s\tTest 5:\tShould reuse the url for the same content : got %s", failed, again)
			}
			t.Logf("\t%s\tTest 5:\tShould reuse the url for the same content.", success)
		}
	}
}

func ifErrFailNow(t *testing.T, test int, should string, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("\t%s\tTest %d:\tShould %s : %s", failed, test, should, err)
	}
}
