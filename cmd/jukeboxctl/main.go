// Package main provides the jukebox command line client.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/gabriel-vasile/mimetype"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/punjabibox/internal/api/connect"
)

var (
	app    = kingpin.New("jukeboxctl", "Punjabi jukebox client")
	server = app.Flag("server", "Daemon address").Default("http://127.0.0.1:7878").Envar("JUKEBOX_SERVER").String()
	token  = app.Flag("token", "Admin token (or set JUKEBOX_ADMIN_TOKEN env)").Envar("JUKEBOX_ADMIN_TOKEN").String()

	// catalog command
	catalogCmd     = app.Command("catalog", "List the song catalog").Alias("ls")
	catalogRefresh = catalogCmd.Flag("refresh", "Reload the catalog from its source first").Bool()

	// search command
	searchCmd   = app.Command("search", "Search songs by title, artist or album")
	searchQuery = searchCmd.Arg("query", "Search query").String()

	// playback commands
	playCmd    = app.Command("play", "Play a song, or toggle it when it is already current")
	playSongID = playCmd.Arg("song-id", "Song ID").Required().String()
	pauseCmd   = app.Command("pause", "Pause playback")
	resumeCmd  = app.Command("resume", "Resume playback")
	seekCmd    = app.Command("seek", "Seek within the current song")
	seekPos    = seekCmd.Arg("position", "Position, e.g. 1m30s").Required().Duration()
	stopCmd    = app.Command("stop", "Stop playback")
	statusCmd  = app.Command("status", "Show daemon status")

	// like commands
	likeCmd    = app.Command("like", "Like or unlike a song")
	likeSongID = likeCmd.Arg("song-id", "Song ID").Required().String()
	likedCmd   = app.Command("liked", "List liked songs")

	// playlist commands
	playlistCmd          = app.Command("playlist", "Manage playlists")
	playlistCreateCmd    = playlistCmd.Command("create", "Create a playlist")
	playlistCreateName   = playlistCreateCmd.Arg("name", "Playlist name").Required().String()
	playlistCreateDesc   = playlistCreateCmd.Flag("description", "Playlist description").Short('d').String()
	playlistListCmd      = playlistCmd.Command("list", "List playlists").Default()
	playlistShowCmd      = playlistCmd.Command("show", "Show a playlist and its songs")
	playlistShowID       = playlistShowCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistAddCmd       = playlistCmd.Command("add", "Add a song to a playlist")
	playlistAddID        = playlistAddCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistAddSongID    = playlistAddCmd.Arg("song-id", "Song ID").Required().String()
	playlistRemoveCmd    = playlistCmd.Command("remove", "Remove a song from a playlist")
	playlistRemoveID     = playlistRemoveCmd.Arg("playlist-id", "Playlist ID").Required().String()
	playlistRemoveSongID = playlistRemoveCmd.Arg("song-id", "Song ID").Required().String()
	playlistDeleteCmd    = playlistCmd.Command("delete", "Delete a playlist")
	playlistDeleteID     = playlistDeleteCmd.Arg("playlist-id", "Playlist ID").Required().String()

	// upload command
	uploadCmd    = app.Command("upload", "Upload a song to the catalog")
	uploadFile   = uploadCmd.Arg("file", "Audio file").Required().ExistingFile()
	uploadTitle  = uploadCmd.Flag("title", "Song title").Required().String()
	uploadArtist = uploadCmd.Flag("artist", "Artist").Required().String()
	uploadAlbum  = uploadCmd.Flag("album", "Album").Required().String()
	uploadCover  = uploadCmd.Flag("cover", "Album cover URL").Required().String()

	// storage command
	storageCmd = app.Command("storage", "List stored audio objects")

	// watch command
	watchCmd = app.Command("watch", "Stream live updates")
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := apiconnect.NewLibraryClient(http.DefaultClient, *server)
	admin := apiconnect.NewAdminClient(http.DefaultClient, *server, *token)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case catalogCmd.FullCommand():
		err = listCatalog(ctx, client, admin, *catalogRefresh)
	case searchCmd.FullCommand():
		err = search(ctx, client, *searchQuery)
	case playCmd.FullCommand():
		err = printSession(client.Play(ctx, *playSongID))
	case pauseCmd.FullCommand():
		err = printSession(client.Pause(ctx))
	case resumeCmd.FullCommand():
		err = printSession(client.Resume(ctx))
	case seekCmd.FullCommand():
		err = printSession(client.Seek(ctx, *seekPos))
	case stopCmd.FullCommand():
		err = printSession(client.Stop(ctx))
	case statusCmd.FullCommand():
		err = status(ctx, admin)
	case likeCmd.FullCommand():
		err = like(ctx, client, *likeSongID)
	case likedCmd.FullCommand():
		err = listLiked(ctx, client)
	case playlistCreateCmd.FullCommand():
		err = printPlaylist(client.CreatePlaylist(ctx, *playlistCreateName, *playlistCreateDesc))
	case playlistListCmd.FullCommand():
		err = listPlaylists(ctx, client)
	case playlistShowCmd.FullCommand():
		err = printPlaylist(client.GetPlaylist(ctx, *playlistShowID))
	case playlistAddCmd.FullCommand():
		err = printPlaylist(client.AddToPlaylist(ctx, *playlistAddID, *playlistAddSongID))
	case playlistRemoveCmd.FullCommand():
		err = printPlaylist(client.RemoveFromPlaylist(ctx, *playlistRemoveID, *playlistRemoveSongID))
	case playlistDeleteCmd.FullCommand():
		if err = client.DeletePlaylist(ctx, *playlistDeleteID); err == nil {
			fmt.Println("Playlist deleted")
		}
	case uploadCmd.FullCommand():
		err = uploadSong(ctx, admin)
	case storageCmd.FullCommand():
		err = storage(ctx, admin)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	}

	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func listCatalog(ctx context.Context, client *apiconnect.LibraryClient, admin *apiconnect.AdminClient, refresh bool) error {
	if refresh {
		if _, err := admin.RefreshCatalog(ctx); err != nil {
			return err
		}
	}
	resp, err := client.ListSongs(ctx)
	if err != nil {
		return err
	}
	printCatalogStatus(resp.Status)
	printSongs(resp.Songs)
	return nil
}

func search(ctx context.Context, client *apiconnect.LibraryClient, query string) error {
	resp, err := client.Search(ctx, query)
	if err != nil {
		return err
	}
	if !resp.Active {
		fmt.Println("Enter a query to search")
		return nil
	}
	if len(resp.Songs) == 0 {
		fmt.Printf("No results for %q\n", resp.Query)
		return nil
	}
	fmt.Printf("Results for %q:\n", resp.Query)
	printSongs(resp.Songs)
	return nil
}

func status(ctx context.Context, admin *apiconnect.AdminClient) error {
	resp, err := admin.GetStatus(ctx)
	if err != nil {
		return err
	}
	fmt.Println("\n=== JUKEBOX STATUS ===")
	printCatalogStatus(resp.Catalog)
	fmt.Printf("Liked songs: %d\n", resp.Liked)
	fmt.Printf("Playlists: %d\n", resp.Playlists)
	fmt.Printf("Watchers: %d\n", resp.Subscribers)
	printSessionInfo(resp.Session)
	fmt.Println()
	return nil
}

func like(ctx context.Context, client *apiconnect.LibraryClient, songID string) error {
	resp, err := client.ToggleLike(ctx, songID)
	if err != nil {
		return err
	}
	if resp.Liked {
		fmt.Printf("Liked %s\n", resp.SongID)
	} else {
		fmt.Printf("Unliked %s\n", resp.SongID)
	}
	return nil
}

func listLiked(ctx context.Context, client *apiconnect.LibraryClient) error {
	resp, err := client.ListLiked(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Liked Songs (%d)\n", resp.Count)
	printSongs(resp.Songs)
	return nil
}

func listPlaylists(ctx context.Context, client *apiconnect.LibraryClient) error {
	resp, err := client.ListPlaylists(ctx)
	if err != nil {
		return err
	}
	if len(resp.Playlists) == 0 {
		fmt.Println("No playlists")
		return nil
	}
	for _, p := range resp.Playlists {
		fmt.Printf("  %s  %-30s %d songs  by %s\n", p.ID, p.Name, p.SongCount, p.CreatedBy)
	}
	return nil
}

func uploadSong(ctx context.Context, admin *apiconnect.AdminClient) error {
	data, err := os.ReadFile(*uploadFile)
	if err != nil {
		return err
	}
	resp, err := admin.Upload(ctx, &apiconnect.UploadRequest{
		Title:       *uploadTitle,
		Artist:      *uploadArtist,
		Album:       *uploadAlbum,
		AlbumCover:  *uploadCover,
		FileName:    filepath.Base(*uploadFile),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Uploaded %s (%s) as %s\n", resp.Song.Title, resp.Song.FormatDuration(), resp.Song.ID)
	return nil
}

func storage(ctx context.Context, admin *apiconnect.AdminClient) error {
	resp, err := admin.StorageInfo(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Songs in catalog: %d\n", resp.SongCount)
	fmt.Printf("Objects in bucket: %d\n", len(resp.Objects))
	for _, o := range resp.Objects {
		fmt.Printf("  %-50s %10d  %-12s %s\n", o.Name, o.Size, o.ContentType, o.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func watch(ctx context.Context, client *apiconnect.LibraryClient) error {
	stream, err := client.Watch(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Println("Watching for updates. Press Ctrl+C to exit.")

	for stream.Receive() {
		printNotification(stream.Msg())
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
