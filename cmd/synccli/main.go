// Package main provides a CLI client for the socialsync API.
package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/alecthomas/kingpin/v2"
	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

var (
	app    = kingpin.New("socialsync-cli", "socialsync client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()

	// register command
	registerCmd = app.Command("register", "Register a user and ingest their recent plays")
	registerTag = registerCmd.Arg("tag", "User tag").Required().String()

	// recommend command
	recommendCmd = app.Command("recommend", "Generate and print recommendations")
	recommendTag = recommendCmd.Arg("tag", "User tag or Spotify ID").Required().String()

	// refresh command
	refreshCmd    = app.Command("refresh", "Force-regenerate stored recommendations")
	refreshID     = refreshCmd.Arg("spotify-id", "Spotify user ID").Required().String()
	refreshTopN   = refreshCmd.Flag("top-n", "Number of recommendations").Default("0").Int()
	refreshCutoff = refreshCmd.Flag("cutoff", "Popularity cutoff").Default("0").Int()

	// stored command
	storedCmd   = app.Command("stored", "Read stored recommendations")
	storedID    = storedCmd.Arg("spotify-id", "Spotify user ID").Required().String()
	storedLimit = storedCmd.Flag("limit", "Maximum rows").Default("0").Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	switch command {
	case registerCmd.FullCommand():
		register(*registerTag)
	case recommendCmd.FullCommand():
		get(fmt.Sprintf("%s/recommend/%s", *server, *recommendTag))
	case refreshCmd.FullCommand():
		url := fmt.Sprintf("%s/users/%s/recommendations/refresh", *server, *refreshID)
		if *refreshTopN > 0 || *refreshCutoff > 0 {
			url = fmt.Sprintf("%s?top_n=%d&pop_cutoff=%d", url, *refreshTopN, *refreshCutoff)
		}
		get(url)
	case storedCmd.FullCommand():
		url := fmt.Sprintf("%s/users/%s/recommendations", *server, *storedID)
		if *storedLimit > 0 {
			url = fmt.Sprintf("%s?limit=%d", url, *storedLimit)
		}
		get(url)
	}
}

func register(tag string) {
	body, err := json.Marshal(map[string]string{"tag": tag})
	if err != nil {
		fail(err)
	}
	resp, err := http.Post(*server+"/users", "application/json", bytes.NewReader(body))
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

func get(url string) {
	resp, err := http.Get(url)
	if err != nil {
		fail(err)
	}
	defer resp.Body.Close()
	printResponse(resp)
}

// printResponse re-indents the JSON body for the terminal.
func printResponse(resp *http.Response) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fail(err)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		pretty.Write(data)
	}

	if resp.StatusCode >= 400 {
		fmt.Printf("Error (%d): %s\n", resp.StatusCode, pretty.String())
		os.Exit(1)
	}
	fmt.Println(pretty.String())
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}
