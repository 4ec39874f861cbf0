package luaemitter

// clientTemplate wraps the rendered namespace tree with the client table,
// its constructor, the header mutators and the shared dispatch routine.
// .Tree is already indented for the body of new().
const clientTemplate = `-- Code generated by openapi2lua. DO NOT EDIT.
{{- if .Source}}
-- Source: {{.Source}}
{{- end}}

local {{.Name}} = {}
{{.Name}}.__index = {{.Name}}
{{- if .Query}}

local function __percentEncode(value)
  return (string.gsub(tostring(value), "[^A-Za-z0-9_.~%-]", function(c)
    return string.format("%%%02X", string.byte(c))
  end))
end

local function __encodeQuery(query)
  if type(query) ~= "table" or next(query) == nil then
    return ""
  end

  local keys = {}
  for k in pairs(query) do
    keys[#keys + 1] = k
  end
  table.sort(keys, function(a, b)
    return tostring(a) < tostring(b)
  end)

  local parts = {}
  for _, k in ipairs(keys) do
    local v = query[k]
    if v ~= nil then
      local key = __percentEncode(k)
      if type(v) == "table" then
        for i = 1, (v.n or #v) do
          if v[i] ~= nil then
            parts[#parts + 1] = key .. "=" .. __percentEncode(v[i])
          end
        end
      else
        parts[#parts + 1] = key .. "=" .. __percentEncode(v)
      end
    end
  end
  return table.concat(parts, "&")
end
{{- end}}

function {{.Name}}:new(config)
  local instance = {
    baseUrl = config.baseUrl,
{{- if .HeaderMerge}}
    baseHeaders = config.baseHeaders or {},
{{- end}}
    request = config.request
  }

  setmetatable(instance, self)
{{- if .Tree}}

{{.Tree}}
{{- end}}

  return instance
end
{{- if .HeaderMerge}}

function {{.Name}}:setBaseHeaders(headers)
  self.baseHeaders = headers or {}
end

function {{.Name}}:setBaseHeader(name, value)
  if not self.baseHeaders then self.baseHeaders = {} end
  self.baseHeaders[name] = value
end

function {{.Name}}:removeBaseHeader(name)
  if not self.baseHeaders then return end
  self.baseHeaders[name] = nil
end
{{- end}}

function {{.Name}}:_request(options)
  options = options or {}
{{- if .HeaderMerge}}

  local headers = nil
  if self.baseHeaders ~= nil or options.headers ~= nil then
    headers = {}
    for k, v in pairs(self.baseHeaders or {}) do
      headers[k] = v
    end
    for k, v in pairs(options.headers or {}) do
      headers[k] = v
    end
  end
{{- else}}

  local headers = options.headers
{{- end}}

  local url = self.baseUrl .. options.url
{{- if .Query}}
  local query = __encodeQuery(options.query)
  if query ~= "" then
    if string.find(url, "?", 1, true) then
      url = url .. "&" .. query
    else
      url = url .. "?" .. query
    end
  end
{{- end}}

  return self.request({
    url = url,
    body = options.body,
    headers = headers,
    binary = options.binary,
    method = options.method,
    redirect = options.redirect,
    timeout = options.timeout
  })
end

return {{.Name}}
`
