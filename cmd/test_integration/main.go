package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Smoke test against a running server: type a word, pick its first meaning,
// set an attribute and check the graph.
func main() {
	baseURL := os.Getenv("ONTOSENSE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:5121"
	}
	word := "HDD"
	if len(os.Args) > 1 {
		word = os.Args[1]
	}

	// Wait for server to start
	time.Sleep(2 * time.Second)

	fmt.Println("Starting smoke test...")

	fmt.Println("1. Heartbeat...")
	if _, ok := sendRequest(baseURL, "GET", "/heartbeat", nil, nil); !ok {
		fail("heartbeat")
	}

	fmt.Println("2. Typing input...")
	if _, ok := sendRequest(baseURL, "PUT", "/input", map[string]string{"text": word + " "}, nil); !ok {
		fail("input")
	}

	fmt.Println("3. Requesting meanings...")
	var candidates []map[string]any
	if _, ok := sendRequest(baseURL, "GET", "/meanings?word="+url.QueryEscape(word), nil, &candidates); !ok || len(candidates) == 0 {
		fail("meanings")
	}
	for i, c := range candidates {
		fmt.Printf("   %d. %v\n", i+1, c["meaning"])
	}

	pillPath := "/pills/" + url.PathEscape(word)

	fmt.Println("4. Selecting first sense...")
	if _, ok := sendRequest(baseURL, "POST", pillPath+"/sense", candidates[0], nil); !ok {
		fail("select sense")
	}

	fmt.Println("5. Setting an attribute...")
	var opts struct {
		Options []struct {
			Name   string   `json:"name"`
			Values []string `json:"values"`
		} `json:"options"`
	}
	if _, ok := sendRequest(baseURL, "GET", pillPath+"/attributes", nil, &opts); !ok {
		fail("attribute options")
	}
	if len(opts.Options) > 0 {
		attr := map[string]string{"name": opts.Options[0].Name, "value": opts.Options[0].Values[0]}
		if _, ok := sendRequest(baseURL, "POST", pillPath+"/attributes", attr, nil); !ok {
			fail("set attribute")
		}
	} else {
		fmt.Println("   no catalog entries for", word)
	}

	fmt.Println("6. Reading graph...")
	var view struct {
		Nodes []map[string]any `json:"nodes"`
		Edges []map[string]any `json:"edges"`
	}
	if _, ok := sendRequest(baseURL, "GET", "/graph", nil, &view); !ok {
		fail("graph")
	}
	fmt.Printf("PASSED: %d nodes, %d edges\n", len(view.Nodes), len(view.Edges))
}

func fail(step string) {
	fmt.Println("FAILED:", step)
	os.Exit(1)
}

func sendRequest(baseURL, method, endpoint string, payload, out any) (int, bool) {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+endpoint, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return 0, false
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return 0, false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(respBody))
		return resp.StatusCode, false
	}
	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			return resp.StatusCode, false
		}
	}
	return resp.StatusCode, true
}
