package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"avatar-service/internal/uploader"
)

func main() {
	var (
		server = flag.String("server", "http://localhost:8080", "avatar service base URL")
		userID = flag.String("user", "", "user id to update")
		crop   = flag.Int("crop", -1, "index of a staged file to square-crop (preview only)")
	)
	flag.Parse()

	if *userID == "" || flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: avatarctl -user <id> [-server URL] [-crop N] file...")
		os.Exit(2)
	}

	session := uploader.NewSession(*server, *userID,
		uploader.WithHTTPClient(&http.Client{Timeout: 2 * time.Minute}),
		uploader.WithProgress(func(pct int) {
			fmt.Printf("\rUploading... %3d%%", pct)
		}),
	)
	defer session.Close()

	for _, path := range flag.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
			os.Exit(1)
		}
		f := uploader.File{
			Name: filepath.Base(path),
			Type: mimeForPath(path),
			Data: data,
		}
		if err := session.Add(f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	if *crop >= 0 {
		dataURL, err := session.Crop(*crop)
		if err != nil {
			fmt.Fprintf(os.Stderr, "crop: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("crop preview: %d bytes (not submitted)\n", len(dataURL))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	res, err := session.Upload(ctx)
	fmt.Println()
	if err != nil {
		fmt.Fprintf(os.Stderr, "upload failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s -> %s\n", res.Message, res.AvatarURL)
}

func mimeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
