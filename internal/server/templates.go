package server

import (
	"html/template"
	"net/url"
	"path"
	"strings"
)

const indexTemplate = `<!DOCTYPE html>
<html>
  <head>
    <meta http-equiv="Content-Type" content="text/html; charset=utf-8">
    <title>File Navigator - {{if .Current}}{{.Current}}{{else}}/{{end}}</title>
    <style>
      body { font-family: Arial, sans-serif; margin: 20px; }
      .nav-item { padding: 8px; border-bottom: 1px solid #eee; }
      .directory { background: #f0f8ff; font-weight: bold; }
      .file { background: #f9f9f9; }
      .nav-item:hover { background: #e6f3ff; }
      a { text-decoration: none; color: #333; }
      .up-link { margin-bottom: 20px; padding: 10px; background: #ddd; }
      .icon { margin-right: 8px; }
      .meta { float: right; color: #666; }
    </style>
  </head>
  <body>
    <h1>File Navigator</h1>
    <p>Current Directory: <strong>/{{.Current}}</strong></p>
    {{if .ShowUp}}
    <div class="up-link">
      <a href="{{.UpHref}}"><span class="icon">&#x2B06;</span>Go Up</a>
    </div>
    {{end}}
    <div class="file-list">
      {{range .Dirs}}
      <div class="nav-item directory">
        <a href="{{.Href}}"><span class="icon">&#x1F4C1;</span>{{.Name}}</a>
      </div>
      {{end}}
      {{range .Files}}
      <div class="nav-item file">
        <a href="{{.Href}}" target="_blank"><span class="icon">&#x1F4C4;</span>{{.Name}}</a>
        <small class="meta">{{.Modified}} ({{.Size}})</small>
      </div>
      {{end}}
    </div>
    {{if .Empty}}
    <p><em>Directory is empty</em></p>
    {{end}}
  </body>
</html>`

type indexPageData struct {
	Current string
	ShowUp  bool
	UpHref  string
	Dirs    []entryView
	Files   []entryView
	Empty   bool
}

type entryView struct {
	Name     string
	Href     string
	Modified string
	Size     string
}

func newIndexTemplate() (*template.Template, error) {
	return template.New("index").Parse(indexTemplate)
}

// buildIndexPage turns a listing of the directory at current (slash form,
// relative to the root, "" for the root) into template data.
func buildIndexPage(current string, l listing) indexPageData {
	data := indexPageData{
		Current: current,
		Dirs:    make([]entryView, 0, len(l.Dirs)),
		Files:   make([]entryView, 0, len(l.Files)),
		Empty:   l.empty(),
	}

	if current != "" {
		data.ShowUp = true
		data.UpHref = buildDirHref(parentDir(current))
	}

	for _, entry := range l.Dirs {
		data.Dirs = append(data.Dirs, entryView{
			Name: entry.Name,
			Href: buildDirHref(joinRelative(current, entry.Name)),
		})
	}

	for _, entry := range l.Files {
		data.Files = append(data.Files, entryView{
			Name:     entry.Name,
			Href:     buildFileHref(joinRelative(current, entry.Name)),
			Modified: formatModTime(entry.ModifyTime),
			Size:     formatBytes(entry.Size),
		})
	}

	return data
}

func buildDirHref(relative string) string {
	return "?dir=" + url.QueryEscape(relative)
}

func buildFileHref(relative string) string {
	clean := strings.TrimPrefix(relative, "./")
	if clean == "" {
		return "/"
	}

	parts := strings.Split(clean, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}

	return "/" + strings.Join(parts, "/")
}

func joinRelative(current, name string) string {
	if current == "" {
		return name
	}

	return current + "/" + name
}

func parentDir(current string) string {
	parent := path.Dir(current)
	if parent == "." || parent == "/" {
		return ""
	}

	return parent
}
