package uploader

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func jpegFile(name string, size int) File {
	return File{Name: name, Type: "image/jpeg", Data: bytes.Repeat([]byte{0xAB}, size)}
}

func pngFile(t *testing.T, name string, w, h int) File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return File{Name: name, Type: "image/png", Data: buf.Bytes()}
}

func TestAdd_AppendsInDropOrder(t *testing.T) {
	s := NewSession("http://localhost", "u1")

	require.NoError(t, s.Add(jpegFile("a.jpg", 10), jpegFile("b.jpg", 10), jpegFile("c.jpg", 10)))
	require.NoError(t, s.Add(jpegFile("d.jpg", 10), jpegFile("e.jpg", 10)))

	staged := s.Staged()
	require.Len(t, staged, 5)
	for i, want := range []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"} {
		require.Equal(t, want, staged[i].Name)
	}
	require.Equal(t, StatePreviewing, s.State())
}

func TestAdd_BatchOverCapacityRejectedWhole(t *testing.T) {
	s := NewSession("http://localhost", "u1")
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Add(jpegFile("f.jpg", 10)))
	}

	err := s.Add(jpegFile("extra.jpg", 10))
	require.Error(t, err)
	require.Equal(t, "You've reached the image limit.", err.Error())
	require.Len(t, s.Staged(), 5)
	require.Equal(t, "You've reached the image limit.", s.Err())
}

func TestAdd_UnsupportedFormatNamesFile(t *testing.T) {
	s := NewSession("http://localhost", "u1")

	err := s.Add(File{Name: "notes.txt", Type: "text/plain", Data: []byte("hi")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "notes.txt")
	require.Contains(t, err.Error(), "JPG, PNG")
	require.Empty(t, s.Staged())
}

func TestAdd_OversizedFileRejected(t *testing.T) {
	s := NewSession("http://localhost", "u1")

	err := s.Add(jpegFile("big.jpg", maxFileSize+1))
	require.Error(t, err)
	require.Equal(t, "This image is larger than 5MB. Please select a smaller image.", err.Error())
	require.Empty(t, s.Staged())
}

func TestAdd_MixedBatchKeepsValidOnes(t *testing.T) {
	s := NewSession("http://localhost", "u1")

	err := s.Add(
		jpegFile("ok.jpg", 10),
		File{Name: "doc.pdf", Type: "application/pdf", Data: []byte("x")},
	)
	require.Error(t, err)

	staged := s.Staged()
	require.Len(t, staged, 1)
	require.Equal(t, "ok.jpg", staged[0].Name)
}

func TestRemove_ShiftsAndReleasesPreview(t *testing.T) {
	s := NewSession("http://localhost", "u1")
	require.NoError(t, s.Add(jpegFile("a.jpg", 10), jpegFile("b.jpg", 10), jpegFile("c.jpg", 10)))

	removed := s.Previews()[1]
	require.NoError(t, s.Remove(1))

	staged := s.Staged()
	require.Len(t, staged, 2)
	require.Equal(t, "a.jpg", staged[0].Name)
	require.Equal(t, "c.jpg", staged[1].Name)
	require.True(t, removed.Released())
	require.Nil(t, removed.Bytes())

	require.Error(t, s.Remove(5))
}

func TestCrop_CosmeticDataURLOnly(t *testing.T) {
	original := pngFile(t, "pic.png", 40, 20)
	var received []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, _, err := r.FormFile("avatar")
		require.NoError(t, err)
		received, err = io.ReadAll(f)
		require.NoError(t, err)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Avatar updated successfully","avatarUrl":"/uploads/1-pic.png"}`))
	}))
	defer srv.Close()

	s := NewSession(srv.URL, "u1")
	require.NoError(t, s.Add(original))

	dataURL, err := s.Crop(0)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(dataURL, "data:image/png;base64,"))
	require.Equal(t, dataURL, s.CropData())

	_, err = s.Upload(context.Background())
	require.NoError(t, err)

	// the crop result never reaches the wire; the original bytes do
	require.Equal(t, original.Data, received)
}

func TestWriteChunks_HalfMegChunksOverOneMeg(t *testing.T) {
	data := bytes.Repeat([]byte{1}, 1024*1024)

	var reported []int
	err := writeChunks(io.Discard, data, 512*1024, func(pct int) {
		reported = append(reported, pct)
	})
	require.NoError(t, err)
	require.Equal(t, []int{50, 100}, reported)
}

func TestUpload_SuccessReportsHundredAndResets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Avatar updated successfully","avatarUrl":"/uploads/2-a.jpg"}`))
	}))
	defer srv.Close()

	var reported []int
	s := NewSession(srv.URL, "u1", WithProgress(func(pct int) {
		reported = append(reported, pct)
	}), WithChunkSize(64))

	preview := func() *Preview {
		require.NoError(t, s.Add(jpegFile("a.jpg", 300)))
		return s.Previews()[0]
	}()

	res, err := s.Upload(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Avatar updated successfully", res.Message)
	require.Equal(t, "/uploads/2-a.jpg", res.AvatarURL)

	require.NotEmpty(t, reported)
	require.Equal(t, 100, reported[len(reported)-1])
	for i := 1; i < len(reported); i++ {
		require.GreaterOrEqual(t, reported[i], reported[i-1])
	}

	// successful submission discards the selection and releases previews
	require.Empty(t, s.Staged())
	require.True(t, preview.Released())
	require.Equal(t, StateIdle, s.State())
}

func TestUpload_ServerErrorResetsProgress(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"User not found"}`))
	}))
	defer srv.Close()

	var reported []int
	s := NewSession(srv.URL, "missing", WithProgress(func(pct int) {
		reported = append(reported, pct)
	}))
	require.NoError(t, s.Add(jpegFile("a.jpg", 100)))

	_, err := s.Upload(context.Background())
	require.Error(t, err)
	require.Equal(t, "User not found", s.Err())
	require.Equal(t, StateError, s.State())

	require.NotEmpty(t, reported)
	require.Equal(t, 0, reported[len(reported)-1])

	// still interactive: the selection survives for a retry
	require.Len(t, s.Staged(), 1)
}

func TestUpload_SecondSubmitWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		close(entered)
		<-release
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Avatar updated successfully","avatarUrl":"/uploads/3-a.jpg"}`))
	}))
	defer srv.Close()

	s := NewSession(srv.URL, "u1")
	require.NoError(t, s.Add(jpegFile("a.jpg", 100)))

	done := make(chan error, 1)
	go func() {
		_, err := s.Upload(context.Background())
		done <- err
	}()

	<-entered
	_, err := s.Upload(context.Background())
	require.ErrorIs(t, err, ErrUploadInFlight)

	close(release)
	require.NoError(t, <-done)
}

func TestUpload_NothingStaged(t *testing.T) {
	s := NewSession("http://localhost", "u1")
	_, err := s.Upload(context.Background())
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestClose_ReleasesEverything(t *testing.T) {
	s := NewSession("http://localhost", "u1")
	require.NoError(t, s.Add(jpegFile("a.jpg", 10), jpegFile("b.jpg", 10)))
	previews := s.Previews()

	s.Close()

	require.Empty(t, s.Staged())
	require.Equal(t, StateIdle, s.State())
	for _, p := range previews {
		require.True(t, p.Released())
	}
}
