// Command fetchstories downloads every Z-machine story file listed on
// the IF Archive's zcode index into a local blob store, for later use
// with cmd/zvm. Grounded on the teacher's cmd/scraper/main.go, adapted
// to write through port.BlobStore instead of direct os calls and to
// skip files the store already has.
package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rezrov-go/zmachine/port"
)

const indexURL = "https://www.ifarchive.org/indexes/if-archive/games/zcode/"

var gameFileRe = regexp.MustCompile(`\.z[12345678]$`)

func main() {
	outDir := flag.String("dir", "stories", "directory to store downloaded Z-machine files in")
	flag.Parse()

	store := port.NewFSBlobStore(*outDir)

	games, err := fetchIndex(indexURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch index: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d games to download\n", len(games))

	var downloaded, skipped, failed int
	client := &http.Client{Timeout: 30 * time.Second}
	var manifest strings.Builder

	for i, g := range games {
		manifest.WriteString(g.name + "\n")

		if _, err := store.Load(g.name); err == nil {
			fmt.Printf("[%d/%d] Skipping %s (already have it)\n", i+1, len(games), g.name)
			skipped++
			continue
		}

		fmt.Printf("[%d/%d] Downloading %s... ", i+1, len(games), g.name)
		data, err := fetchGame(client, g.url)
		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failed++
			continue
		}
		if err := store.Save(g.name, data); err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failed++
			continue
		}
		fmt.Printf("OK (%d bytes)\n", len(data))
		downloaded++

		time.Sleep(100 * time.Millisecond) // be nice to the server
	}

	fmt.Printf("\nDone! Downloaded: %d, Skipped: %d, Failed: %d\n", downloaded, skipped, failed)

	if err := store.Save("manifest.txt", []byte(manifest.String())); err != nil {
		fmt.Fprintf(os.Stderr, "write manifest: %v\n", err)
	}
}

type gameLink struct {
	name string
	url  string
}

func fetchIndex(url string) ([]gameLink, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	res, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}

	var games []gameLink
	doc.Find("dl dt").Each(func(_ int, s *goquery.Selection) {
		href, exists := s.Find("a").Attr("href")
		if !exists || !gameFileRe.MatchString(href) {
			return
		}
		games = append(games, gameLink{
			name: filepath.Base(href),
			url:  "https://www.ifarchive.org" + href,
		})
	})
	return games, nil
}

func fetchGame(client *http.Client, url string) ([]byte, error) {
	res, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", res.StatusCode)
	}
	return io.ReadAll(res.Body)
}
