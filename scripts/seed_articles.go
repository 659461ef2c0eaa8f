// seed_articles.go seeds articles through the Pulse admin API from a markdown list.
//
// Each "## Category" header sets the category of the items below it. Items are
// "- Title | https://source.url | tag, tag"; the URL and tags are optional. An
// item with a URL is fetched and extracted by the server.
//
// Usage:
//
//	go run scripts/seed_articles.go -file articles.md -api http://localhost:8700 -token $PULSE_ADMIN_TOKEN
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

type seedItem struct {
	Title    string   `json:"title,omitempty"`
	URL      string   `json:"url,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

func main() {
	path := flag.String("file", "articles.md", "path to the markdown article list")
	apiURL := flag.String("api", "http://localhost:8700", "Pulse API base URL")
	token := flag.String("token", os.Getenv("PULSE_ADMIN_TOKEN"), "admin bearer token")
	dryRun := flag.Bool("dry-run", false, "print items without posting")
	flag.Parse()

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("open %s: %v", *path, err)
	}
	defer f.Close()

	var items []seedItem
	var category string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "#") {
			category = strings.ToLower(strings.TrimSpace(strings.TrimLeft(line, "# ")))
			continue
		}
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		if item, ok := parseItem(strings.TrimPrefix(line, "- "), category); ok {
			items = append(items, item)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("scan %s: %v", *path, err)
	}

	log.Printf("parsed %d items from %s", len(items), *path)

	if *dryRun {
		for i, item := range items {
			fmt.Printf("[%d] %s (category=%s, url=%s, tags=%v)\n", i+1, item.Title, item.Category, item.URL, item.Tags)
		}
		return
	}

	client := &http.Client{Timeout: 2 * time.Minute}
	created, skipped := 0, 0
	for _, item := range items {
		endpoint := "/api/v1/admin/articles"
		if item.URL != "" {
			endpoint = "/api/v1/admin/articles/url"
		}
		body, _ := json.Marshal(item)
		req, err := http.NewRequest("POST", *apiURL+endpoint, bytes.NewReader(body))
		if err != nil {
			log.Printf("skip %q: %v", item.Title, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		if *token != "" {
			req.Header.Set("Authorization", "Bearer "+*token)
		}

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip %q: %v", item.Title, err)
			skipped++
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			created++
		} else {
			log.Printf("skip %q: status %d", item.Title, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}

func parseItem(text, category string) (seedItem, bool) {
	parts := strings.Split(text, "|")
	item := seedItem{Title: strings.TrimSpace(parts[0]), Category: category}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		switch {
		case strings.HasPrefix(p, "http://"), strings.HasPrefix(p, "https://"):
			item.URL = p
		case p != "":
			for _, tag := range strings.Split(p, ",") {
				if tag = strings.TrimSpace(tag); tag != "" {
					item.Tags = append(item.Tags, tag)
				}
			}
		}
	}
	return item, item.Title != "" || item.URL != ""
}
