// Package main provides the Spotify authorization tool.
// Each user runs through the flow once; the resulting refresh token is
// written to the token directory under the user's tag for ingestion.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/socialsync/socialsync/internal/infra/spotify"
)

var (
	app          = kingpin.New("socialsync-auth", "Spotify authorization tool for socialsync")
	clientID     = app.Flag("client-id", "Spotify Client ID").Envar("SPOTIFY_CLIENT_ID").Required().String()
	clientSecret = app.Flag("client-secret", "Spotify Client Secret").Envar("SPOTIFY_CLIENT_SECRET").Required().String()
	port         = app.Flag("port", "Callback server port").Default("8888").Int()
	tokenDir     = app.Flag("token-dir", "Directory for per-user refresh tokens").Default(".tokens").String()
	tag          = app.Arg("tag", "User tag the token is stored under").Required().String()

	auth  *spotifyauth.Authenticator
	ch    = make(chan *oauth2.Token)
	state = "socialsync-auth-state"
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	kingpin.MustParse(app.Parse(os.Args[1:]))

	customRedirectURI := fmt.Sprintf("http://127.0.0.1:%d/callback", *port)

	auth = spotifyauth.New(
		spotifyauth.WithRedirectURL(customRedirectURI),
		spotifyauth.WithClientID(*clientID),
		spotifyauth.WithClientSecret(*clientSecret),
		spotifyauth.WithScopes(spotify.Scopes()...),
	)

	http.HandleFunc("/callback", completeAuth)

	server := &http.Server{Addr: fmt.Sprintf(":%d", *port)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	url := auth.AuthURL(state)
	fmt.Printf("Authorizing listening-history access for %q.\n", *tag)
	fmt.Println("Please visit the following URL:")
	fmt.Println("")
	fmt.Println(url)
	fmt.Println("")
	fmt.Println("Waiting for authorization...")

	token := <-ch

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown server: %v", err)
	}

	if err := spotify.SaveUserToken(*tokenDir, *tag, token.RefreshToken); err != nil {
		log.Fatalf("Failed to save token: %v", err)
	}

	fmt.Println("")
	fmt.Println("=== Authorization Successful ===")
	fmt.Println("")
	fmt.Printf("Refresh token stored for %q in %s\n", *tag, *tokenDir)
	fmt.Printf("The server can now ingest this user via POST /users {\"tag\": %q}\n", *tag)
}

func completeAuth(w http.ResponseWriter, r *http.Request) {
	token, err := auth.Token(r.Context(), state, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusForbidden)
		log.Printf("Failed to get token: %v", err)
		return
	}

	if st := r.FormValue("state"); st != state {
		http.Error(w, "State mismatch", http.StatusForbidden)
		log.Printf("State mismatch: %s != %s", st, state)
		return
	}

	fmt.Fprintf(w, "<html><body><h2>socialsync - authorization complete</h2><p>You can close this window.</p></body></html>")
	ch <- token
}
