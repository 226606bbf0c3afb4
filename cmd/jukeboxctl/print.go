package main

import (
	"fmt"

	apiconnect "github.com/osa030/punjabibox/internal/api/connect"
	"github.com/osa030/punjabibox/internal/domain/song"
)

func printSongs(songs []song.Song) {
	for _, s := range songs {
		fmt.Printf("  %-8s %-30s %-24s %-24s %5s\n", s.ID, s.Title, s.Artist, s.Album, s.FormatDuration())
	}
}

func printCatalogStatus(s apiconnect.CatalogStatus) {
	if !s.Available {
		fmt.Printf("Catalog unavailable: %s\n", s.Error)
		return
	}
	fmt.Printf("Catalog: %d songs (loaded %s)\n", s.Count, s.LoadedAt.Local().Format("15:04:05"))
}

func printSession(resp *apiconnect.SessionResponse, err error) error {
	if err != nil {
		return err
	}
	printSessionInfo(resp.Session)
	return nil
}

func printSessionInfo(s apiconnect.Session) {
	fmt.Printf("State: %s\n", formatState(s.State))
	if s.CurrentSong != nil {
		fmt.Printf("  Song: %s - %s (%s)\n", s.CurrentSong.Title, s.CurrentSong.Artist, s.CurrentSong.FormatDuration())
		fmt.Printf("  Position: %ds\n", s.PositionMs/1000)
	}
	if s.LastError != "" {
		fmt.Printf("  Error: %s\n", s.LastError)
	}
	for _, e := range s.Trail {
		fmt.Printf("  [%s] %s\n", e.At.Local().Format("15:04:05"), e.Message)
	}
}

func formatState(state string) string {
	switch state {
	case "idle":
		return "⏹  Idle"
	case "paused":
		return "⏸  Paused"
	case "playing":
		return "▶️  Playing"
	case "errored":
		return "⚠️  Error"
	default:
		return "❓ Unknown"
	}
}

func printPlaylist(resp *apiconnect.PlaylistResponse, err error) error {
	if err != nil {
		return err
	}
	p := resp.Playlist
	fmt.Printf("%s  %s\n", p.ID, p.Name)
	if p.Description != "" {
		fmt.Printf("  %s\n", p.Description)
	}
	fmt.Printf("  %d songs, by %s\n", p.SongCount, p.CreatedBy)
	if len(resp.Songs) > 0 {
		total := song.Song{DurationSeconds: float64(resp.TotalDurationSeconds)}
		fmt.Printf("  Total: %s\n", total.FormatDuration())
		printSongs(resp.Songs)
	}
	return nil
}

func printNotification(n *apiconnect.Notification) {
	fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)

	switch n.Type {
	case apiconnect.NotificationInitialState:
		fmt.Println("=== INITIAL STATE ===")
	case apiconnect.NotificationSession:
		fmt.Println("=== PLAYBACK ===")
	case apiconnect.NotificationSearch:
		fmt.Println("=== SEARCH RESULTS ===")
	case apiconnect.NotificationCatalog:
		fmt.Println("=== CATALOG ===")
	case apiconnect.NotificationCollection:
		fmt.Printf("=== %s CHANGED ===\n", n.Collection)
	default:
		fmt.Printf("=== UNKNOWN EVENT (%s) ===\n", n.Type)
	}

	if n.Catalog != nil {
		printCatalogStatus(*n.Catalog)
	}
	if n.Session != nil {
		printSessionInfo(*n.Session)
	}
	if n.Search != nil {
		fmt.Printf("Query %q: %d results\n", n.Search.Query, len(n.Search.Songs))
		printSongs(n.Search.Songs)
	}
}
