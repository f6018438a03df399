package state

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// RenderVim encodes st as a Vim script literal followed by the interpreter
// that loads extensions from it. Keys keep the order of the JSON artifact.
func RenderVim(st *State) ([]byte, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	lines := renderValue(gjson.ParseBytes(data), 0)
	lines[0] = "let s:state = " + strings.TrimLeft(lines[0], " ")
	for i := 1; i < len(lines); i++ {
		lines[i] = `\ ` + lines[i]
	}

	var b strings.Builder
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	b.WriteString(vimInterpreter)
	return []byte(b.String()), nil
}

// vimString quotes s as a Vim string literal. Strings holding control
// characters use the double-quoted form so the literal stays on one line.
func vimString(s string) string {
	if !strings.ContainsFunc(s, isControl) {
		return "'" + strings.ReplaceAll(s, "'", "''") + "'"
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if isControl(r) {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

func renderValue(v gjson.Result, indent int) []string {
	pad := strings.Repeat(" ", indent)
	switch {
	case v.Type == gjson.String:
		return []string{pad + vimString(v.String())}
	case v.Type == gjson.Number:
		return []string{pad + v.Raw}
	case v.Type == gjson.True:
		return []string{pad + "v:true"}
	case v.Type == gjson.False:
		return []string{pad + "v:false"}
	case v.IsArray():
		items := v.Array()
		if len(items) == 0 {
			return []string{pad + "[]"}
		}
		lines := []string{pad + "["}
		for _, item := range items {
			itemLines := renderValue(item, indent+2)
			itemLines[len(itemLines)-1] += ","
			lines = append(lines, itemLines...)
		}
		return append(lines, pad+"]")
	case v.IsObject():
		lines := []string{pad + "{"}
		empty := true
		v.ForEach(func(key, val gjson.Result) bool {
			empty = false
			valLines := renderValue(val, indent+2)
			prefix := pad + "  " + vimString(key.String()) + ": "
			lines = append(lines, prefix+strings.TrimLeft(valLines[0], " "))
			lines = append(lines, valLines[1:]...)
			lines[len(lines)-1] += ","
			return true
		})
		if empty {
			return []string{pad + "{}"}
		}
		return append(lines, pad+"}")
	}
	return []string{pad + "v:null"}
}

// vimInterpreter is the Vim script implementation of the runtime loader.
const vimInterpreter = `if get(s:state, 'schema', 0) != 1
  echohl WarningMsg
  echomsg 'quiver: state.vim schema mismatch. run quiver compile.'
  echohl None
  finish
endif

let s:loaded = {}
let s:command_running = {}

function! s:TrimSpace(value) abort
  return substitute(a:value, '\s\+$', '', '')
endfunction

function! s:IsLazy(plugin) abort
  let l:lazy = get(a:plugin, 'lazy', {})
  return len(get(l:lazy, 'on_event', [])) > 0
    \ || len(get(l:lazy, 'on_ft', [])) > 0
    \ || len(get(l:lazy, 'on_cmd', [])) > 0
endfunction

function! s:IsLoaded(name) abort
  return get(s:loaded, a:name, v:false)
endfunction

function! s:PluginBasePath(plugin) abort
  let l:dev = get(a:plugin, 'dev', {})
  if get(l:dev, 'enable', v:false) && !empty(get(l:dev, 'override_path', ''))
    return l:dev.override_path
  endif
  return get(a:plugin, 'path', '')
endfunction

function! s:PluginRtpPath(plugin) abort
  let l:base = s:PluginBasePath(a:plugin)
  if empty(l:base)
    return ''
  endif
  let l:rtp = get(a:plugin, 'rtp', '')
  if empty(l:rtp)
    return l:base
  endif
  return l:base .. '/' .. l:rtp
endfunction

function! s:EnsureRuntimePath(path) abort
  if index(split(&runtimepath, ','), a:path) < 0
    execute 'set runtimepath^=' .. fnameescape(a:path)
  endif
endfunction

function! s:SourceFiles(base, files) abort
  if empty(a:base)
    return
  endif
  for l:file in a:files
    let l:path = a:base .. '/' .. l:file
    if filereadable(l:path)
      execute 'source' fnameescape(l:path)
    endif
  endfor
endfunction

function! s:EnsureLoaded(name) abort
  if s:IsLoaded(a:name)
    return
  endif
  if !has_key(s:state.plugins, a:name)
    return
  endif
  let l:plugin = s:state.plugins[a:name]
  for l:dep in l:plugin.depends
    call s:EnsureLoaded(l:dep)
  endfor
  let l:rtp = s:PluginRtpPath(l:plugin)
  if empty(l:rtp) || !isdirectory(l:rtp)
    return
  endif
  call s:EnsureRuntimePath(l:rtp)
  call s:SourceFiles(l:rtp, l:plugin.sources)
  if !empty(l:plugin.hooks.source)
    execute l:plugin.hooks.source
  endif
  let s:loaded[a:name] = v:true
endfunction

function! s:SourceFiletype(name, ft) abort
  if !s:IsLoaded(a:name)
    return
  endif
  let l:plugin = s:state.plugins[a:name]
  let l:rtp = s:PluginRtpPath(l:plugin)
  if empty(l:rtp)
    return
  endif
  let l:ft_sources = get(l:plugin, 'ft_sources', {})
  for l:category in ['ftplugin', 'indent', 'syntax']
    let l:table = get(l:ft_sources, l:category, {})
    if has_key(l:table, a:ft)
      call s:SourceFiles(l:rtp, l:table[a:ft])
    endif
  endfor
endfunction

function! s:SourceFiletypeForLoaded(ft) abort
  for l:name in s:state.order
    if s:IsLoaded(l:name)
      call s:SourceFiletype(l:name, a:ft)
    endif
  endfor
endfunction

function! s:OnEvent(event) abort
  if !has_key(s:state.triggers.event, a:event)
    return
  endif
  for l:name in s:state.triggers.event[a:event]
    call s:EnsureLoaded(l:name)
  endfor
endfunction

function! s:OnFileType(ft) abort
  if has_key(s:state.triggers.ft, a:ft)
    for l:name in s:state.triggers.ft[a:ft]
      call s:EnsureLoaded(l:name)
    endfor
  endif
  call s:SourceFiletypeForLoaded(a:ft)
endfunction

function! s:LoadCommandPlugins(cmd) abort
  if !has_key(s:state.triggers.cmd, a:cmd)
    return
  endif
  for l:name in s:state.triggers.cmd[a:cmd]
    call s:EnsureLoaded(l:name)
  endfor
endfunction

function! s:BuildCommand(cmd, qargs, bang, range, count, mods, reg) abort
  let l:parts = []
  let l:mods = s:TrimSpace(a:mods)
  let l:range = s:TrimSpace(a:range)
  if l:range ==# '0'
    let l:range = ''
  endif
  if !empty(l:mods)
    call add(l:parts, l:mods)
  endif
  if !empty(l:range)
    call add(l:parts, l:range)
  elseif a:count > 0
    call add(l:parts, string(a:count))
  endif
  let l:cmd = a:cmd
  if a:bang ==# '!'
    let l:cmd = l:cmd .. '!'
  endif
  if !empty(a:reg)
    let l:cmd = '"' .. a:reg .. l:cmd
  endif
  call add(l:parts, l:cmd)
  if !empty(a:qargs)
    call add(l:parts, a:qargs)
  endif
  return join(l:parts, ' ')
endfunction

function! s:CommandStub(cmd, qargs, bang, range, count, mods, reg) abort
  if get(s:command_running, a:cmd, v:false)
    echohl ErrorMsg
    echomsg 'quiver: command not found after load: ' .. a:cmd
    echohl None
    return
  endif
  let s:command_running[a:cmd] = v:true
  try
    call s:LoadCommandPlugins(a:cmd)
    let l:cmdline = s:BuildCommand(a:cmd, a:qargs, a:bang, a:range, a:count, a:mods, a:reg)
    execute l:cmdline
  finally
    let s:command_running[a:cmd] = v:false
  endtry
endfunction

function! s:DefineCommand(cmd) abort
  let l:escaped = escape(a:cmd, "'")
  execute 'command! -nargs=* -range -count -bang -register -bar ' .. a:cmd
    \ .. ' call s:CommandStub(''' .. l:escaped .. ''', <q-args>, ''<bang>'', ''<range>'', <count>, ''<mods>'', ''<register>'')'
endfunction

for s:name in s:state.order
  call s:SourceFiles(s:PluginRtpPath(s:state.plugins[s:name]), s:state.plugins[s:name].boot_sources)
endfor

for s:name in s:state.order
  let s:plugin = s:state.plugins[s:name]
  if !empty(s:plugin.hooks.add)
    execute s:plugin.hooks.add
  endif
endfor

for s:cmd in sort(keys(s:state.triggers.cmd))
  call s:DefineCommand(s:cmd)
endfor

for s:name in s:state.order
  if !s:IsLazy(s:state.plugins[s:name])
    call s:EnsureLoaded(s:name)
  endif
endfor

augroup quiver_state
  autocmd!
  for s:event in sort(keys(s:state.triggers.event))
    execute 'autocmd ' .. s:event .. ' * call s:OnEvent(''' .. s:event .. ''')'
  endfor
  for s:ft in sort(keys(s:state.triggers.ft))
    execute 'autocmd FileType ' .. s:ft .. ' call s:OnFileType(''' .. s:ft .. ''')'
  endfor
augroup END
`
