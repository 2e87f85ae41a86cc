package mcpserver

// PlotFormatContract describes the plot document shape that MCP clients
// must produce when creating plots.
const PlotFormatContract = `# Arbor Plot Document Contract

A plot is a JSON (or YAML) document stored under the plot data directory.
Field keys are part of the server wire format and must be spelled exactly.

## Structure

` + "```" + `json
{
  "title": "Library lawn",
  "type": "plot",
  "has_tree": true,
  "plot": {
    "id": 12,
    "width": 4,
    "length": 6,
    "readonly": false,
    "address": "200 Elm Street",
    "address_street": "200 Elm Street",
    "address_city": "Philadelphia",
    "address_zip": "19103",
    "geom": {"x": -75.16, "y": 39.95, "srid": 4326}
  },
  "tree": {
    "id": 31,
    "species": {"id": 7, "common_name": "Ginkgo", "scientific_name": "Ginkgo biloba"}
  },
  "perm": {
    "plot": {"can_edit": true, "can_delete": false},
    "tree": {"can_edit": true, "can_delete": true}
  },
  "pending_edits": {
    "tree.diameter": {"latest_value": 14, "pending_edits": [{"id": 90, "value": 14, "username": "kim"}]}
  },
  "photos": [{"id": 1, "image": "photos/a.jpg", "thumbnail": "photos/a_t.jpg"}],
  "power_lines": "none",
  "sidewalk_damage": "minor",
  "data_owner": "city"
}
` + "```" + `

## Rules

1. **` + "`" + `plot` + "`" + ` is required** and must be an object. ` + "`" + `width` + "`" + ` and ` + "`" + `length` + "`" + ` are non-negative integers.
2. **` + "`" + `has_tree` + "`" + ` is authoritative.** When it is true a ` + "`" + `tree` + "`" + ` object must be present.
   A ` + "`" + `tree` + "`" + ` without the flag is kept but not shown as a tree.
3. **Permissions** live under ` + "`" + `perm.plot` + "`" + ` and ` + "`" + `perm.tree` + "`" + `. Missing flags read as false.
4. **Pending edits** are keyed by dotted field name. They are never merged into the live fields.
5. **Photos** need a nonzero ` + "`" + `id` + "`" + ` plus ` + "`" + `image` + "`" + ` and ` + "`" + `thumbnail` + "`" + `; the highest id is shown.
   Add photos with the ` + "`" + `add_tree_photo` + "`" + ` tool rather than by hand.
6. **File paths** end with ` + "`" + `.json` + "`" + `, ` + "`" + `.yaml` + "`" + ` or ` + "`" + `.yml` + "`" + ` and must not live under ` + "`" + `photos/` + "`" + `.
`
