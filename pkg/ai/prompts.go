package ai

// Prompts for the floor-plan analysis stages. All of them demand raw JSON
// with no surrounding prose; the parsing side still tolerates fences and
// minor damage via UnmarshalFlexible.

const ClassifyPagesPrompt = `You are analyzing pages of a renovation design document (floor plans, wall layouts, finish specifications, visualizations).

You receive several page images in order. For EVERY page, in the same order, classify it:

- "plan": a floor plan of the apartment before renovation (original layout)
- "wall_layout": a plan showing new or demolished walls / the renovated layout
- "specification": a finish or material specification page, usually dominated by tables
- "visualization": a 3D render or photo-like visualization of an interior
- "other": title pages, notes, anything else

If a page clearly shows exactly one room (a room detail sheet), set "room" to the room name printed on the page; otherwise set it to null.

Reply with ONLY a JSON array, one object per input page, in input order:
[{"page_type": "plan", "room": null}, {"page_type": "visualization", "room": "Kitchen"}]`

const LocateTablesPrompt = `You are looking at pages from a renovation design document. Each image may contain data tables (room/area schedules, finish tables, material lists).

For EVERY image, in the same order as given, report the bounding box of each table you see and the type of plan the page shows.

Coordinates are pixels in the image you were given, with the origin at the top-left corner.

Reply with ONLY a JSON array, one object per input image, in input order:
[{"plan_type": "plan", "tables": [{"x": 10, "y": 20, "width": 300, "height": 200}]}, {"plan_type": "wall_layout", "tables": []}]

plan_type is one of "plan", "wall_layout", "specification", "other". If an image has no tables, use an empty array.`

const LocateRoomRegionsPrompt = `You are looking at pages of a renovation design document that relate to one specific room.

For EVERY image, in the same order as given, report the bounding boxes of regions worth reading closely: data tables, dimension callouts, and legend blocks. For each region say whether it is a table of materials/finishes ("materials") or anything else ("detail").

Coordinates are pixels in the image you were given, origin at the top-left corner.

Reply with ONLY a JSON array, one object per input image, in input order:
[{"regions": [{"kind": "materials", "x": 5, "y": 5, "width": 400, "height": 250}]}, {"regions": []}]`

const StructureFromTablesPrompt = `You are reading cropped area tables from renovation floor plans. Each crop is labeled with the plan type it came from.

Extract every room row. For each room report its name exactly as printed, its floor area in square meters if a number is printed, and the plan type label of the crop it came from.

Also report the apartment's total area and address if they are printed on any crop.

NEVER invent or estimate a number. If a value is not printed, use null.

Reply with ONLY a JSON object:
{"total_area": 54.2, "address": null, "rooms": [{"name": "Kitchen", "type": "kitchen", "area": 12.4, "plan_type": "plan"}]}`

const StructureFromPagesPrompt = `You are reading full floor-plan pages of a renovation design document. No separate area table was found, so read the plans themselves.

List every room that appears on the plans. For each room report the name as printed, its floor area in square meters ONLY if a number is printed on the plan, and the plan type ("plan" for the original layout, "wall_layout" for the renovated layout).

Also report the apartment's total area and address if printed.

NEVER invent or estimate a number. If no area is printed for a room, use null.

Reply with ONLY a JSON object:
{"total_area": null, "address": null, "rooms": [{"name": "Bedroom", "type": "bedroom", "area": null, "plan_type": "wall_layout"}]}`

const RoomDataPrompt = `You are reading pages and close-up crops from a renovation design document, all relating to the room named below.

Extract what is actually printed:
- room type (kitchen, bathroom, bedroom, hallway, ...) if identifiable
- floor area, wall area, ceiling area in square meters
- perimeter in meters
- ceiling height in meters
- wall, floor and ceiling finishes as printed
- any counts of doors and windows

NEVER invent or estimate a number. Every numeric field that is not printed in the document must be null.

Reply with ONLY a JSON object matching the requested schema.`

const MaterialBillPrompt = `You are reading cropped tables of materials and finishes from a renovation design document.

Extract every row: the material or work description exactly as printed, the unit if printed, and the quantity if printed.

NEVER invent a quantity. If the quantity cell is empty or unreadable, use null.

Reply with ONLY a JSON array of bills, one per input crop:
[{"items": [{"description": "Ceramic tile 600x600", "unit": "m2", "quantity": 14.5}]}]`
