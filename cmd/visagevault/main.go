/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"visagevault/internal/backend"
	"visagevault/internal/config"
	"visagevault/internal/crash"
	applog "visagevault/internal/log"
	"visagevault/internal/settings"
	"visagevault/internal/storage"
	"visagevault/internal/version"
)

func usage() {
	fmt.Println("VisageVault — photo library catalog")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  visagevault version|-v|--version                Show version")
	fmt.Println("  visagevault init <dir>                          Create or migrate the vault database at <dir>")
	fmt.Println("  visagevault check <dir>                         Run an integrity check on the vault at <dir>")
	fmt.Println("  visagevault dates <dir>                         List all photo dates in the vault")
	fmt.Println("  visagevault set-date <dir> <filepath> <year> <month>   Set the date of an indexed photo")
	fmt.Println("  visagevault people <dir>                        List named people in the vault")
	fmt.Println("  visagevault push <dir>                          Push the catalog to the configured mirror")
	fmt.Println("  visagevault settings get <key>                  Print a settings value")
	fmt.Println("  visagevault settings set <key> <value>          Update a settings value")
	fmt.Println("  visagevault safe set <password>                 Set the photo safe password")
	fmt.Println("  visagevault safe verify <password>              Check a photo safe password")
}

// settingsStore opens the settings document in the per-user app directory and
// folds in a pre-rewrite settings.json sitting next to the binary, if any.
func settingsStore(l *slog.Logger) *settings.Store {
	dir, err := config.Path()
	if err != nil {
		l.Error("resolve settings dir failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	s, err := settings.New(filepath.Dir(dir))
	if err != nil {
		l.Error("open settings failed", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	if exe, err := os.Executable(); err == nil {
		if err := s.MigrateLegacy(filepath.Join(filepath.Dir(exe), settings.FileName)); err != nil {
			l.Warn("legacy settings migration failed", slog.Any("err", err))
		}
	}
	return s
}

func openVault(l *slog.Logger, dir string) (string, *storage.Vault) {
	abs, _ := filepath.Abs(dir)
	v, err := storage.Open(storage.DBPath(abs), storage.FailClosed())
	if err != nil {
		l.Error("open vault failed", slog.String("root", abs), slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
	return abs, v
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var libraryRoot string
	defer func() { crash.Recover(libraryRoot) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	ctx := context.Background()
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("VisageVault — photo library catalog")
			fmt.Println(version.String())
			return
		case "init":
			if len(args) < 3 {
				fmt.Println("init requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, _ := openVault(l, args[2])
			libraryRoot = abs
			fmt.Println("Vault ready at", storage.DBPath(abs))
			return
		case "check":
			if len(args) < 3 {
				fmt.Println("check requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, v := openVault(l, args[2])
			libraryRoot = abs
			if err := v.Check(ctx); err != nil {
				l.Error("vault check failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Vault OK.")
			return
		case "dates":
			if len(args) < 3 {
				fmt.Println("dates requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, v := openVault(l, args[2])
			libraryRoot = abs
			dates := v.LoadAllPhotoDates(ctx)
			paths := make([]string, 0, len(dates))
			for p := range dates {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			for _, p := range paths {
				d := dates[p]
				fmt.Printf("%s\t%s-%s\n", p, d.Year, d.Month)
			}
			fmt.Printf("%d photos\n", len(paths))
			return
		case "set-date":
			if len(args) < 6 {
				fmt.Println("set-date requires <dir> <filepath> <year> <month>")
				usage()
				os.Exit(2)
			}
			abs, v := openVault(l, args[2])
			libraryRoot = abs
			if err := v.UpdatePhotoDate(ctx, args[3], args[4], args[5]); err != nil {
				l.Error("set-date failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Updated.")
			return
		case "people":
			if len(args) < 3 {
				fmt.Println("people requires <dir>")
				usage()
				os.Exit(2)
			}
			abs, v := openVault(l, args[2])
			libraryRoot = abs
			people, err := v.People(ctx)
			if err != nil {
				l.Error("list people failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			for _, p := range people {
				fmt.Printf("%d\t%s\n", p.ID, p.Name)
			}
			return
		case "push":
			if len(args) < 3 {
				fmt.Println("push requires <dir>")
				usage()
				os.Exit(2)
			}
			cfg, err := config.Load()
			if err != nil {
				l.Error("load config failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			if !cfg.Mirror.Enabled {
				fmt.Println("Mirror sync is disabled. Enable it in config.yaml (mirror.enabled) or set", config.EnvMirrorEnabled)
				os.Exit(2)
			}
			abs, v := openVault(l, args[2])
			libraryRoot = abs
			photos, err := v.Photos(ctx)
			if err != nil {
				l.Error("read catalog failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			batch := make([]backend.PhotoRecord, 0, len(photos))
			for _, p := range photos {
				batch = append(batch, backend.PhotoRecord{
					Filepath: p.Filepath,
					FileHash: p.FileHash,
					Year:     p.Year,
					Month:    p.Month,
				})
			}
			c := backend.NewClient(cfg.Mirror.BaseURL, cfg.Mirror.Token)
			pushCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Mirror.TimeoutMs)*time.Millisecond)
			defer cancel()
			if err := c.PushPhotos(pushCtx, batch); err != nil {
				l.Error("mirror push failed", slog.String("url", cfg.Mirror.BaseURL), slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			l.Info("mirror push done", slog.Int("photos", len(batch)))
			fmt.Printf("Pushed %d photos to %s\n", len(batch), cfg.Mirror.BaseURL)
			return
		case "settings":
			if len(args) < 4 {
				fmt.Println("settings requires get <key> or set <key> <value>")
				usage()
				os.Exit(2)
			}
			s := settingsStore(l)
			switch args[2] {
			case "get":
				doc, err := s.LoadStrict()
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				v, ok := doc[args[3]]
				if !ok {
					fmt.Println("(unset)")
					return
				}
				fmt.Println(v)
			case "set":
				if len(args) < 5 {
					fmt.Println("settings set requires <key> and <value>")
					os.Exit(2)
				}
				key, val := args[3], args[4]
				var err error
				switch key {
				case settings.KeyThumbnailSize:
					n, convErr := strconv.Atoi(val)
					if convErr != nil {
						fmt.Println("Error: thumbnail size must be an integer")
						os.Exit(2)
					}
					err = s.SetThumbnailSize(n)
				case settings.KeyPhotoDirectory:
					err = s.SetPhotoDirectory(val)
				case settings.KeyDriveFolderID:
					err = s.SetDriveFolderID(val)
				default:
					fmt.Println("Error: unknown settings key", key)
					os.Exit(2)
				}
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				fmt.Println("Saved", s.Path())
			default:
				usage()
				os.Exit(2)
			}
			return
		case "safe":
			if len(args) < 4 {
				fmt.Println("safe requires set <password> or verify <password>")
				usage()
				os.Exit(2)
			}
			s := settingsStore(l)
			switch args[2] {
			case "set":
				if err := s.SetSafePassword(args[3]); err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				fmt.Println("Safe password set.")
			case "verify":
				ok, err := s.VerifySafePassword(args[3])
				if err != nil {
					fmt.Println("Error:", err)
					os.Exit(1)
				}
				if !ok {
					fmt.Println("Wrong password.")
					os.Exit(1)
				}
				fmt.Println("OK.")
			default:
				usage()
				os.Exit(2)
			}
			return
		}
	}

	usage()
}
