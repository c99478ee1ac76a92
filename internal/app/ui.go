package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/data/binding"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"yashubustudio/logcompliance/compliance"
)

type inputKind int

const (
	inputRules inputKind = iota
	inputStandards
	inputLog
	inputCount
)

var inputSpecs = [inputCount]struct {
	title string
	exts  []string // nil shows every file
}{
	inputRules:     {"Upload Rule Definitions", []string{".json", ".yaml", ".yml", ".toml"}},
	inputStandards: {"Upload Compliance Standards", []string{".json", ".yaml", ".yml", ".toml"}},
	inputLog:       {"Upload Log File", nil},
}

// selection tracks the chosen input files.
type selection [inputCount]fyne.URI

func (s selection) ready() bool {
	for _, uri := range s {
		if uri == nil {
			return false
		}
	}
	return true
}

func (s selection) inputs(messageColumn string) compliance.Inputs {
	return compliance.Inputs{
		Rules:     uriUpload(s[inputRules]),
		Standards: uriUpload(s[inputStandards]),
		Log:       uriUpload(s[inputLog]),
		LogOpts:   compliance.LogParseOptions{MessageColumn: messageColumn},
	}
}

func uriUpload(uri fyne.URI) compliance.Upload {
	if uri == nil {
		return compliance.Upload{}
	}
	return compliance.Upload{
		Name: uri.Name(),
		Open: func() (io.ReadCloser, error) { return storage.Reader(uri) },
	}
}

type uiState struct {
	monitor *compliance.Monitor
	logger  *log.Logger
	pane    *logCapture

	w           fyne.Window
	selected    selection
	fileLabels  [inputCount]*widget.Label
	pickBtns    [inputCount]*widget.Button
	processBtn  *widget.Button
	settingsBtn *widget.Button
	columnEntry *widget.Entry
	status      *widget.Label
	progress    *widget.ProgressBar
	resTbl      *widget.Table
	tableData   [][]string

	statusBind   binding.String
	logBind      binding.String
	progressBind binding.Float
}

func buildUI(a fyne.App, monitor *compliance.Monitor, pane *logCapture, logger *log.Logger) *uiState {
	u := &uiState{monitor: monitor, pane: pane, logger: logger}
	u.w = a.NewWindow("Log Compliance Monitor")

	u.statusBind = binding.NewString()
	_ = u.statusBind.Set("Ready")
	u.progressBind = binding.NewFloat()
	u.logBind = binding.NewString()
	pane.start(func(text string) { _ = u.logBind.Set(text) })
	u.w.SetOnClosed(pane.stop)

	pickers := container.NewVBox()
	for i := range inputSpecs {
		kind := inputKind(i)
		u.fileLabels[kind] = widget.NewLabel("No file selected")
		u.pickBtns[kind] = widget.NewButtonWithIcon(inputSpecs[kind].title, theme.FolderOpenIcon(), func() { u.onPick(kind) })
		pickers.Add(container.NewBorder(nil, nil, u.pickBtns[kind], nil, u.fileLabels[kind]))
	}

	u.columnEntry = widget.NewEntry()
	u.columnEntry.SetPlaceHolder("CSV/TSV message column (auto)")

	u.processBtn = widget.NewButtonWithIcon("Process and Generate PDF", theme.DocumentSaveIcon(), func() { u.onProcess() })
	u.processBtn.Importance = widget.HighImportance
	u.processBtn.Disable()
	u.settingsBtn = widget.NewButtonWithIcon("Settings", theme.SettingsIcon(), func() { u.openSettings() })

	u.status = widget.NewLabelWithData(u.statusBind)
	u.progress = widget.NewProgressBarWithData(u.progressBind)
	u.progress.Hide()

	logLabel := widget.NewLabelWithData(u.logBind)
	logLabel.Wrapping = fyne.TextWrapWord
	logContainer := container.NewVScroll(logLabel)
	logContainer.SetMinSize(fyne.NewSize(200, 140))

	u.tableData = buildTableData(compliance.AnalysisResult{})
	u.resTbl = widget.NewTable(
		func() (int, int) {
			return len(u.tableData), len(resultHeader)
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(id widget.TableCellID, obj fyne.CanvasObject) {
			label := obj.(*widget.Label)
			if id.Row >= len(u.tableData) || id.Col >= len(u.tableData[id.Row]) {
				label.SetText("")
				return
			}
			label.TextStyle = fyne.TextStyle{Bold: id.Row == 0}
			label.SetText(u.tableData[id.Row][id.Col])
		},
	)
	for col, width := range []float32{80, 180, 120, 120, 420} {
		u.resTbl.SetColumnWidth(col, width)
	}

	left := container.NewVBox(
		widget.NewLabelWithStyle("Inputs", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		pickers,
		u.columnEntry,
		container.NewGridWithColumns(2, u.processBtn, u.settingsBtn),
		widget.NewSeparator(),
		u.progress,
		u.status,
		widget.NewSeparator(),
		widget.NewLabelWithStyle("Log", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		logContainer,
	)
	split := container.NewHSplit(left, u.resTbl)
	split.Offset = 0.38

	u.w.SetContent(split)
	u.w.Resize(fyne.NewSize(1180, 720))
	return u
}

func (u *uiState) onPick(kind inputKind) {
	fd := dialog.NewFileOpen(func(rc fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if rc == nil {
			return
		}
		uri := rc.URI()
		_ = rc.Close()
		u.selected[kind] = uri
		u.fileLabels[kind].SetText(uri.Name())
		u.logf("Selected %s: %s", inputSpecs[kind].title, uri.Name())
		u.refreshProcessButton()
	}, u.w)
	if filter := pickerFilter(kind); filter != nil {
		fd.SetFilter(filter)
	}
	fd.Show()
}

func pickerFilter(kind inputKind) storage.FileFilter {
	exts := inputSpecs[kind].exts
	if len(exts) == 0 {
		return nil
	}
	return storage.NewExtensionFileFilter(exts)
}

func (u *uiState) refreshProcessButton() {
	if u.selected.ready() {
		u.processBtn.Enable()
	} else {
		u.processBtn.Disable()
	}
}

func (u *uiState) setBusy(b bool) {
	fyne.Do(func() {
		for _, btn := range append(u.pickBtns[:], u.processBtn, u.settingsBtn) {
			if b {
				btn.Disable()
			} else {
				btn.Enable()
			}
		}
		if !b {
			u.refreshProcessButton()
		}
	})
}

func (u *uiState) onProcess() {
	if !u.selected.ready() {
		return
	}
	in := u.selected.inputs(u.columnEntry.Text)
	_ = u.progressBind.Set(0)
	fyne.Do(func() { u.progress.Show() })
	_ = u.statusBind.Set("Processing...")
	u.setBusy(true)
	start := time.Now()

	go func() {
		out, err := u.monitor.Process(context.Background(), in, time.Now(), func(done, total int) {
			if total > 0 {
				_ = u.progressBind.Set(float64(done) / float64(total))
			}
			_ = u.statusBind.Set(fmt.Sprintf("Processing %d/%d", done, total))
		})
		u.setBusy(false)
		fyne.Do(func() { u.progress.Hide() })
		if err != nil {
			_ = u.statusBind.Set("Error")
			u.logf("Error: %v", err)
			fyne.Do(func() { dialog.ShowError(err, u.w) })
			return
		}
		data := buildTableData(out.Result)
		fyne.Do(func() {
			u.tableData = data
			u.resTbl.Refresh()
		})
		_ = u.statusBind.Set(fmt.Sprintf("Done: %d lines (%.1fs)", out.Result.Len(), time.Since(start).Seconds()))
		fyne.Do(func() { u.savePDF(out.PDF) })
	}()
}

func (u *uiState) savePDF(pdf []byte) {
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if uc == nil {
			return
		}
		if _, err := uc.Write(pdf); err != nil {
			_ = uc.Close()
			dialog.ShowError(fmt.Errorf("write report: %w", err), u.w)
			return
		}
		if err := uc.Close(); err != nil {
			dialog.ShowError(fmt.Errorf("close report: %w", err), u.w)
			return
		}
		u.logf("Saved report to %s", uc.URI().Path())
	}, u.w)
	fd.SetFileName(compliance.ReportFileName)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	fd.Show()
}

func (u *uiState) openSettings() {
	cfg := u.monitor.Config()

	modeSel := widget.NewSelect([]string{string(compliance.ModeLiteral), string(compliance.ModeStandards)}, nil)
	modeSel.SetSelected(string(cfg.Compliance.Mode))
	fallbackSel := widget.NewSelect([]string{string(compliance.FallbackLastSeen), string(compliance.FallbackSentinel)}, nil)
	fallbackSel.SetSelected(string(cfg.Compliance.Fallback))
	sentinelEntry := widget.NewEntry()
	sentinelEntry.SetText(cfg.Compliance.FallbackRule)

	form := &widget.Form{Items: []*widget.FormItem{
		{Text: "Extractor", Widget: widget.NewLabel(cfg.Extractor.Backend)},
		{Text: "Compliance mode", Widget: modeSel},
		{Text: "Fallback rule", Widget: fallbackSel},
		{Text: "Sentinel rule", Widget: sentinelEntry},
	}}

	dialog.NewCustomConfirm("Settings", "OK", "Cancel", form, func(ok bool) {
		if !ok {
			return
		}
		newCfg := cfg
		newCfg.Compliance.Mode = compliance.Mode(modeSel.Selected)
		newCfg.Compliance.Fallback = compliance.FallbackPolicy(fallbackSel.Selected)
		newCfg.Compliance.FallbackRule = sentinelEntry.Text
		if err := u.monitor.UpdateConfig(newCfg); err != nil {
			dialog.ShowError(err, u.w)
			return
		}
		if err := persistConfig("", u.monitor.Config()); err != nil {
			u.logf("Save config: %v", err)
		}
		u.logf("Settings updated: mode=%s fallback=%s", newCfg.Compliance.Mode, newCfg.Compliance.Fallback)
	}, u.w).Show()
}

func (u *uiState) logf(format string, args ...any) {
	if u.logger != nil {
		u.logger.Printf(format, args...)
	}
}
