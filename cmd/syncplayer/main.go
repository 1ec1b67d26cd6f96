package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/RoyGalaxy/syncplayer-client/internal/appconfig"
	"github.com/RoyGalaxy/syncplayer-client/internal/catalog"
	"github.com/RoyGalaxy/syncplayer-client/internal/media"
	"github.com/RoyGalaxy/syncplayer-client/internal/models"
	"github.com/RoyGalaxy/syncplayer-client/internal/profile"
	"github.com/RoyGalaxy/syncplayer-client/internal/session"
	"github.com/RoyGalaxy/syncplayer-client/internal/transport"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	cfg := appconfig.NewConfigFromEnv()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	clock := clockwork.NewRealClock()

	store, err := profile.Open(cfg.ProfilePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.ProfilePath).Msg("failed to open profile store")
	}
	defer store.Close()

	tr := transport.New(transport.DefaultConfig(cfg.CoordinatorURL), clock)
	player := media.NewStreamPlayer(media.DefaultStreamPlayerConfig(cfg.StreamBaseURL), clock)

	sessCfg := session.DefaultConfig()
	sessCfg.DriftThreshold = cfg.DriftThreshold
	sess := session.New(sessCfg, tr, player, store, clock)
	search := catalog.New(cfg.CatalogURL)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Str("coordinator", cfg.CoordinatorURL).
		Str("catalog", cfg.CatalogURL).
		Msg("starting syncplayer")

	go func() {
		if err := tr.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("transport stopped")
			cancel()
		}
	}()
	go func() {
		if err := sess.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("session stopped")
			cancel()
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-sess.Notices():
				fmt.Println(">>", n.Message)
			}
		}
	}()

	// Resume the previous room, if one is held.
	if p, ok, err := store.Load(); err == nil && ok && p.Username != "" && p.RoomID != "" {
		log.Info().Str("room_id", p.RoomID).Str("user", p.Username).Msg("resuming previous room")
		sess.JoinRoom(p.RoomID, p.Username)
	}

	runPrompt(ctx, sess, search)
	sess.Close()
}

func runPrompt(ctx context.Context, sess *session.Session, search *catalog.Client) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var results []models.Track
	fmt.Println("commands: create <name> | join <code> <name> | leave | play | pause | seek <sec> | next | search <query> | pick <n> | status | quit")

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			switch fields[0] {
			case "create":
				sess.CreateRoom(strings.Join(fields[1:], " "))
			case "join":
				if len(fields) < 3 {
					fmt.Println("usage: join <code> <name>")
					continue
				}
				sess.JoinRoom(fields[1], strings.Join(fields[2:], " "))
			case "leave":
				sess.LeaveRoom()
			case "play":
				sess.RequestPlay()
			case "pause":
				sess.RequestPause()
			case "seek":
				if len(fields) < 2 {
					fmt.Println("usage: seek <seconds>")
					continue
				}
				sec, err := strconv.ParseFloat(fields[1], 64)
				if err != nil {
					fmt.Println("usage: seek <seconds>")
					continue
				}
				sess.BeginSeek()
				sess.CommitSeek(sec)
			case "next":
				sess.RequestNext()
			case "search":
				query := strings.Join(fields[1:], " ")
				tracks, err := search.Search(ctx, query)
				if err != nil {
					fmt.Println(">> search failed:", err)
				}
				results = tracks
				for i, t := range results {
					fmt.Printf("%2d. %s - %s\n", i+1, t.Title, t.Artist)
				}
				if len(results) == 0 {
					fmt.Println("no results")
				}
			case "pick":
				if len(fields) < 2 {
					fmt.Println("usage: pick <n>")
					continue
				}
				n, err := strconv.Atoi(fields[1])
				if err != nil || n < 1 || n > len(results) {
					fmt.Println("pick a number from the last search")
					continue
				}
				sess.SelectTrack(results[n-1])
			case "status":
				snap := sess.Snapshot()
				if snap.Room == nil {
					fmt.Println("not in a room")
					continue
				}
				fmt.Printf("room %s, %d participant(s)\n", snap.Room.ID, len(snap.Room.Participants))
				if snap.Playback.CurrentTrack != nil {
					fmt.Printf("track: %s - %s  playing=%v  pos=%.1fs\n",
						snap.Playback.CurrentTrack.Title, snap.Playback.CurrentTrack.Artist,
						snap.Playback.Playing, snap.Playback.Position)
				}
			case "quit", "exit":
				return
			default:
				fmt.Println("unknown command:", fields[0])
			}
		}
	}
}
