package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"time"
)

const apiBase = "http://localhost:8080/api/v1"

const testGuild = 1

type User struct {
	DisplayName string `json:"displayName"`
	Password    string `json:"password"`
	Token       string `json:"token"`
	UserID      string `json:"userId"`
}

type RegisterResponse struct {
	User struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

type TeamSlot struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
	OnRole   bool   `json:"onRole"`
}

type ShuffleResponse struct {
	ID        int64   `json:"id"`
	FirstPick string  `json:"firstPick"`
	WinProb   float64 `json:"winProb"`
	Radiant   struct {
		Slots []TeamSlot `json:"slots"`
	} `json:"radiant"`
	Dire struct {
		Slots []TeamSlot `json:"slots"`
	} `json:"dire"`
}

func registerUser(displayName, password string) (*User, error) {
	body, _ := json.Marshal(map[string]string{
		"displayName": displayName,
		"password":    password,
	})

	resp, err := http.Post(apiBase+"/auth/register", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("registration failed (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result RegisterResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	return &User{
		DisplayName: result.User.DisplayName,
		Password:    password,
		Token:       result.AccessToken,
		UserID:      result.User.ID,
	}, nil
}

func post(token, path string, payload map[string]interface{}) error {
	body, _ := json.Marshal(payload)

	req, _ := http.NewRequest("POST", apiBase+path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s failed (%d): %s", path, resp.StatusCode, string(bodyBytes))
	}

	return nil
}

func registerPlayer(token string, playerID int, name string, roles []int) error {
	return post(token, "/players", map[string]interface{}{
		"playerId":       playerID,
		"guildId":        testGuild,
		"name":           name,
		"preferredRoles": roles,
	})
}

func joinLobby(token string, playerID int) error {
	return post(token, "/lobby/join", map[string]interface{}{
		"guildId":  testGuild,
		"playerId": playerID,
		"queue":    "regular",
	})
}

func shuffle(token string) (*ShuffleResponse, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"guildId":   testGuild,
		"fromLobby": true,
	})

	req, _ := http.NewRequest("POST", apiBase+"/matches/shuffle", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("shuffle failed (%d): %s", resp.StatusCode, string(bodyBytes))
	}

	var result ShuffleResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}

	return &result, nil
}

func generateUsername(index int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	random := make([]byte, 4)
	for i := range random {
		random[i] = letters[rand.Intn(len(letters))]
	}
	return fmt.Sprintf("test_%d_%d_%s", index, time.Now().Unix(), string(random))
}

func main() {
	rand.Seed(time.Now().UnixNano())

	fmt.Println("Setting up a 10-player test guild...")

	password := "testpassword123"

	fmt.Println("\nRegistering operator account...")
	operator, err := registerUser(generateUsername(0), password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register operator: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("  ✓ Operator: %s\n", operator.DisplayName)

	// Two players per position so an all-on-role split exists.
	fmt.Println("\nRegistering 10 players...")
	for i := 1; i <= 10; i++ {
		name := fmt.Sprintf("player_%02d", i)
		roles := []int{(i-1)%5 + 1}
		if err := registerPlayer(operator.Token, i, name, roles); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to register player %d: %v\n", i, err)
			os.Exit(1)
		}
		fmt.Printf("  ✓ Player %d: %s (position %d)\n", i, name, roles[0])
	}

	fmt.Println("\nOpening lobby and queueing players...")
	if err := post(operator.Token, "/lobby", map[string]interface{}{"guildId": testGuild}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open lobby: %v\n", err)
		os.Exit(1)
	}
	for i := 1; i <= 10; i++ {
		if err := joinLobby(operator.Token, i); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to queue player %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	fmt.Println("  ✓ Lobby ready")

	fmt.Println("\nShuffling teams...")
	result, err := shuffle(operator.Token)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shuffle: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + "============================================================")
	fmt.Println("TEST GUILD SETUP COMPLETE")
	fmt.Println("============================================================")

	fmt.Printf("\nPending match %d (first pick: %s, radiant win prob: %.3f)\n",
		result.ID, result.FirstPick, result.WinProb)

	fmt.Println("\n  Radiant:")
	for _, slot := range result.Radiant.Slots {
		fmt.Printf("    pos %d: %s (onRole=%v)\n", slot.Position, slot.Name, slot.OnRole)
	}
	fmt.Println("\n  Dire:")
	for _, slot := range result.Dire.Slots {
		fmt.Printf("    pos %d: %s (onRole=%v)\n", slot.Position, slot.Name, slot.OnRole)
	}

	fmt.Printf("\nOperator login: %s / %s\n", operator.DisplayName, operator.Password)
	fmt.Println("\nNext steps:")
	fmt.Println("  - vote a result:   POST /api/v1/matches/submit  {\"guildId\":1,\"result\":\"radiant\"}")
	fmt.Println("  - or force-record: POST /api/v1/matches/record  {\"guildId\":1,\"winner\":\"radiant\"} (admin)")
}
