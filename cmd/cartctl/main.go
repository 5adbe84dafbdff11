// cartctl is a CLI tool for exercising the cart API.
// Each command performs a single operation, making it composable for scripts.
//
// Commands:
//
//	cartctl choices -server URL -product ID
//	cartctl add -server URL -variant ID [-qty N]
//	cartctl get -server URL
//	cartctl change -server URL -variant ID -qty N
//	cartctl permalink -server URL
//
// Examples:
//
//	cartctl choices -server http://localhost:8080 -product 100
//	cartctl add -server http://localhost:8080 -variant 112 -qty 2
//	cartctl permalink -server http://localhost:8080
//
// The session cookie is persisted in -cookie-file between invocations so
// consecutive commands operate on the same cart.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var client = &http.Client{Timeout: 30 * time.Second}

// ANSI color codes
var (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorReset, colorRed, colorGreen, colorCyan, colorBold = "", "", "", "", ""
	}
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "choices":
		runChoices(args)
	case "add":
		runAdd(args)
	case "get":
		runGet(args)
	case "change":
		runChange(args)
	case "permalink":
		runPermalink(args)
	case "-h", "-help", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `cartctl - cart API test tool

Usage:
  cartctl <command> [options]

Commands:
  choices    List purchase options for a product
  add        Add a variant to the cart
  get        Show the current cart
  change     Set the quantity of a cart line (0 removes)
  permalink  Print the checkout permalink for the cart

Examples:
  cartctl choices -server http://localhost:8080 -product 100
  cartctl add -server http://localhost:8080 -variant 112 -qty 2
  cartctl change -server http://localhost:8080 -variant 112 -qty 0
  cartctl permalink -server http://localhost:8080
`)
}

// commonFlags registers flags shared by all commands.
func commonFlags(fs *flag.FlagSet) (server, cookieFile *string) {
	server = fs.String("server", "http://localhost:8080", "cart service base URL")
	cookieFile = fs.String("cookie-file", os.TempDir()+"/cartctl-session", "session cookie storage")
	return
}

func runChoices(args []string) {
	fs := flag.NewFlagSet("choices", flag.ExitOnError)
	server, cookieFile := commonFlags(fs)
	product := fs.String("product", "", "product id (numeric or gid form)")
	fs.Parse(args)

	if *product == "" {
		fatal("choices: -product is required")
	}

	var resp struct {
		Title   string `json:"title"`
		Choices []struct {
			Label     string `json:"label"`
			VariantID string `json:"variant_id"`
			PriceText string `json:"price_text"`
			Available bool   `json:"available"`
		} `json:"choices"`
	}
	call(*server, *cookieFile, http.MethodGet, "/products/"+*product+"/choices", nil, &resp)

	fmt.Printf("%s%s%s\n", colorBold, resp.Title, colorReset)
	for _, c := range resp.Choices {
		avail := colorGreen + "in stock" + colorReset
		if !c.Available {
			avail = colorRed + "sold out" + colorReset
		}
		fmt.Printf("  %-10s %s%-14s%s %s  (%s)\n", c.Label, colorCyan, c.VariantID, colorReset, c.PriceText, avail)
	}
}

func runAdd(args []string) {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	server, cookieFile := commonFlags(fs)
	variant := fs.String("variant", "", "variant id to add")
	qty := fs.Int("qty", 1, "quantity")
	fs.Parse(args)

	if *variant == "" {
		fatal("add: -variant is required")
	}

	body := map[string]any{"variant_id": *variant, "quantity": *qty}
	var resp struct {
		Outcome     string   `json:"outcome"`
		RedirectURL string   `json:"redirect_url"`
		Reason      string   `json:"reason"`
		Cart        *cartDoc `json:"cart"`
	}
	call(*server, *cookieFile, http.MethodPost, "/cart/add", body, &resp)

	switch resp.Outcome {
	case "added":
		fmt.Printf("%sadded%s %s x%d\n", colorGreen, colorReset, *variant, *qty)
		if resp.Cart != nil {
			printCart(*resp.Cart)
		}
	case "redirect":
		fmt.Printf("%scart backend unavailable%s, open:\n%s\n", colorRed, colorReset, resp.RedirectURL)
	default:
		fmt.Printf("%srejected%s: %s\n", colorRed, colorReset, resp.Reason)
		os.Exit(1)
	}
}

func runGet(args []string) {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	server, cookieFile := commonFlags(fs)
	fs.Parse(args)

	var cart cartDoc
	call(*server, *cookieFile, http.MethodGet, "/cart", nil, &cart)
	printCart(cart)
}

func runChange(args []string) {
	fs := flag.NewFlagSet("change", flag.ExitOnError)
	server, cookieFile := commonFlags(fs)
	variant := fs.String("variant", "", "variant id to change")
	qty := fs.Int("qty", -1, "new quantity (0 removes)")
	fs.Parse(args)

	if *variant == "" || *qty < 0 {
		fatal("change: -variant and -qty are required")
	}

	body := map[string]any{"variant_id": *variant, "quantity": *qty}
	var cart cartDoc
	call(*server, *cookieFile, http.MethodPost, "/cart/change", body, &cart)
	printCart(cart)
}

func runPermalink(args []string) {
	fs := flag.NewFlagSet("permalink", flag.ExitOnError)
	server, cookieFile := commonFlags(fs)
	fs.Parse(args)

	var resp struct {
		URL string `json:"url"`
	}
	call(*server, *cookieFile, http.MethodGet, "/cart/permalink", nil, &resp)
	fmt.Println(resp.URL)
}

// cartDoc mirrors the service's cart view.
type cartDoc struct {
	Lines []struct {
		VariantID    string `json:"variant_id"`
		Quantity     int    `json:"quantity"`
		ProductTitle string `json:"product_title"`
		VariantTitle string `json:"variant_title"`
		LineTotal    int64  `json:"line_total"`
	} `json:"lines"`
	TotalQuantity int    `json:"total_quantity"`
	SubtotalText  string `json:"subtotal_text"`
}

func printCart(cart cartDoc) {
	if len(cart.Lines) == 0 {
		fmt.Println("cart is empty")
		return
	}
	for _, line := range cart.Lines {
		title := line.ProductTitle
		if line.VariantTitle != "" {
			title += " / " + line.VariantTitle
		}
		fmt.Printf("  %s%-10s%s x%-3d %s\n", colorCyan, line.VariantID, colorReset, line.Quantity, title)
	}
	fmt.Printf("%s%d items, %s%s\n", colorBold, cart.TotalQuantity, cart.SubtotalText, colorReset)
}

// call performs one API request, carrying the session cookie across
// invocations via cookieFile.
func call(server, cookieFile, method, path string, body, out any) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			fatal("encoding request: " + err.Error())
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, strings.TrimSuffix(server, "/")+path, reader)
	if err != nil {
		fatal("building request: " + err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie := loadCookie(cookieFile); cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := client.Do(req)
	if err != nil {
		fatal("request failed: " + err.Error())
	}
	defer resp.Body.Close()

	for _, c := range resp.Cookies() {
		if c.Name == "cb_session" {
			saveCookie(cookieFile, c.Name+"="+c.Value)
		}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		fatal("reading response: " + err.Error())
	}

	// Rejected adds come back with an error status but a decodable body.
	if resp.StatusCode >= 400 && !bytes.Contains(respBody, []byte(`"outcome"`)) {
		var errResp struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Code != "" {
			fatal(fmt.Sprintf("%s: %s", errResp.Error.Code, errResp.Error.Message))
		}
		fatal(fmt.Sprintf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			fatal("decoding response: " + err.Error())
		}
	}
}

func loadCookie(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func saveCookie(path, value string) {
	os.WriteFile(path, []byte(value), 0o600)
}

func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "%serror:%s %s\n", colorRed, colorReset, msg)
	os.Exit(1)
}
