package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/shojbahmed330/oneclick-studio/models"
)

// placeholderBody is shown when a project has no renderable entry document yet.
const placeholderBody = `<div id="app" style="color: #52525b; font-size: 12px; font-weight: 900; text-transform: uppercase; display: flex; align-items: center; justify-content: center; height: 100vh; background: #09090b;">System Initializing...</div>`

// Relative <link>/<script src> tags are stripped from the entry document; the
// project's own CSS/JS is inlined instead since the synthesized document is
// served as an opaque string, not from a real file path. Absolute URLs
// (containing "://") are preserved.
var (
	relativeLinkRe   = regexp.MustCompile(`(?i)<link[^>]+href=["'](?:[^"':]|:[^/"']|:/[^/"'])*["'][^>]*>`)
	relativeScriptRe = regexp.MustCompile(`(?i)<script[^>]+src=["'](?:[^"':]|:[^/"']|:/[^/"'])*["'][^>]*>\s*</script>`)
)

// BuildPreviewHTML composes the entry document, every CSS file and every JS
// file of the tree into one self-contained sandboxable HTML string with
// runtime-error forwarding. It is a pure function of its inputs and never
// fails: any missing piece degrades to a placeholder.
func BuildPreviewHTML(files models.ProjectTree, entryPath string, config *models.ProjectConfig) string {
	entryHTML := resolveEntryDocument(files, entryPath)

	processed := relativeLinkRe.ReplaceAllString(entryHTML, "")
	processed = relativeScriptRe.ReplaceAllString(processed, "")

	headInjection := buildHeadInjection(files, config)
	finalScript := "<script>\n" + concatProjectJS(files) + "\n</script>"

	if !strings.Contains(strings.ToLower(processed), "<html") {
		return fmt.Sprintf(`<!DOCTYPE html><html lang="en"><head>%s</head><body>%s%s</body></html>`,
			headInjection, processed, finalScript)
	}

	if strings.Contains(processed, "</head>") {
		processed = strings.Replace(processed, "</head>", headInjection+"</head>", 1)
	} else {
		processed = strings.Replace(processed, "<body", "<head>"+headInjection+"</head><body", 1)
	}

	if strings.Contains(processed, "</body>") {
		processed = strings.Replace(processed, "</body>", finalScript+"</body>", 1)
	} else {
		processed += finalScript
	}

	return processed
}

// resolveEntryDocument walks the fallback chain: the requested path, the
// conventional entry points, any file that looks like markup, then the
// placeholder.
func resolveEntryDocument(files models.ProjectTree, entryPath string) string {
	candidates := []string{entryPath, "app/index.html", "index.html", "app/main.html"}
	for _, path := range candidates {
		if path == "" {
			continue
		}
		if content, ok := files[path]; ok && content != "" {
			return content
		}
	}
	for _, path := range files.Paths() {
		content := files[path]
		if strings.Contains(content, "<body") || strings.Contains(content, "<div") {
			return content
		}
	}
	return placeholderBody
}

func buildHeadInjection(files models.ProjectTree, config *models.ProjectConfig) string {
	var head strings.Builder
	head.WriteString(`<meta charset="UTF-8">`)
	head.WriteString("\n")
	head.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1.0, maximum-scale=1.0, user-scalable=no, viewport-fit=cover">`)
	head.WriteString("\n")
	head.WriteString(`<script src="https://cdn.tailwindcss.com"></script>`)
	head.WriteString("\n<style>\n")
	head.WriteString(`* { box-sizing: border-box; -webkit-tap-highlight-color: transparent; }` + "\n")
	head.WriteString(`html, body { height: 100%; margin: 0; padding: 0; background-color: #09090b !important; color: #f4f4f5; font-family: sans-serif; }` + "\n")
	head.WriteString(`::-webkit-scrollbar { display: none; }` + "\n")
	head.WriteString(concatProjectCSS(files))
	head.WriteString("\n</style>\n")
	head.WriteString(buildRuntimeBridge(config))
	return head.String()
}

// concatProjectCSS joins every .css file in path order into one style block.
func concatProjectCSS(files models.ProjectTree) string {
	var css strings.Builder
	for _, path := range sortedByExt(files, ".css") {
		css.WriteString(fmt.Sprintf("/* --- FILE: %s --- */\n", path))
		css.WriteString(files[path])
		css.WriteString("\n")
	}
	return css.String()
}

// concatProjectJS joins every .js file in path order, each wrapped in its own
// try/catch so one file's top-level exception does not abort the others.
func concatProjectJS(files models.ProjectTree) string {
	var js strings.Builder
	for _, path := range sortedByExt(files, ".js") {
		js.WriteString(fmt.Sprintf("// --- FILE: %s ---\n", path))
		js.WriteString("try {\n")
		js.WriteString(files[path])
		js.WriteString(fmt.Sprintf("\n} catch(e) { console.error(\"Error in %s:\", e); }\n", path))
	}
	return js.String()
}

func sortedByExt(files models.ProjectTree, ext string) []string {
	var paths []string
	for path, content := range files {
		if strings.HasSuffix(path, ext) && content != "" {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// buildRuntimeBridge emits the script that exposes the configured external
// database endpoint (if any), forwards uncaught runtime errors to the hosting
// page, and disables automatic scroll restoration.
func buildRuntimeBridge(config *models.ProjectConfig) string {
	databaseBridge := "window.StudioDatabase = null;"
	if config != nil && config.DatabaseURL != "" {
		databaseBridge = fmt.Sprintf(`window.StudioDatabase = { url: %q, key: %q };
console.log('Database Bridge: Active');`, config.DatabaseURL, config.DatabaseKey)
	}

	return fmt.Sprintf(`<script>
%s
window.onerror = function(message, source, lineno, colno, error) {
  window.parent.postMessage({
    type: 'RUNTIME_ERROR',
    error: { message: message, line: lineno, source: source ? source.split('/').pop() : 'index.html' }
  }, '*');
  return false;
};
if ('scrollRestoration' in history) { history.scrollRestoration = 'manual'; }
</script>`, databaseBridge)
}
